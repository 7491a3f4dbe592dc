package resender_tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/resender/internal/instrumentation"
	"github.com/teemow/resender/internal/resend"
	"github.com/teemow/resender/internal/server"
	"github.com/teemow/resender/internal/tools/common"
)

// ClientFunc returns the Gmail client used by a tool call.
type ClientFunc func() (resend.Client, error)

// serverClient adapts ServerContext.GmailClient, avoiding a typed nil.
func serverClient(sc *server.ServerContext) ClientFunc {
	return func() (resend.Client, error) {
		client, err := sc.GmailClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// RegisterResenderTools registers the resender tools with the MCP server.
// resender_exclude changes the exclusion file and is only registered when
// readOnly is false.
func RegisterResenderTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if s == nil || sc == nil {
		return fmt.Errorf("server and server context are required")
	}

	previewTool := mcp.NewTool("resender_preview",
		mcp.WithDescription("Dry-run the resend pipeline: search sent mail for job applications and report which messages would be resent and why others are skipped. Nothing is sent and the exclusion list is not changed."),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of sent messages to examine (default: MAX_EMAILS_PER_RUN)"),
		),
		mcp.WithNumber("max_per_recipient",
			mcp.Description("Skip recipients that already received this many emails (default: MAX_EMAILS_PER_RECIPIENT, 0 disables)"),
		),
	)
	s.AddTool(previewTool, common.InstrumentedToolHandlerWithService(
		"resender_preview", instrumentation.ServiceGmail, instrumentation.OperationList, sc,
		previewHandler(sc, serverClient(sc)),
	))

	listTool := mcp.NewTool("resender_list_exclusions",
		mcp.WithDescription("List the recipients on the exclusion list. Excluded recipients are never resent to."),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("resender_list_exclusions", sc, listExclusionsHandler(sc)))

	if !readOnly {
		excludeTool := mcp.NewTool("resender_exclude",
			mcp.WithDescription("Add a recipient to the exclusion list so future runs never resend to it"),
			mcp.WithString("recipient",
				mcp.Required(),
				mcp.Description("Email address to exclude (a display name form like 'Jane <jane@example.com>' is accepted)"),
			),
		)
		s.AddTool(excludeTool, common.InstrumentedToolHandler("resender_exclude", sc, excludeHandler(sc)))
	}

	return nil
}
