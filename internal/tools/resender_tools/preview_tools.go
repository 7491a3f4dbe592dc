package resender_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/resender/internal/resend"
	"github.com/teemow/resender/internal/server"
	"github.com/teemow/resender/internal/tools/common"
)

func previewHandler(sc *server.ServerContext, clientFn ClientFunc) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		cfg := sc.Config()

		maxResults := common.GetIntArg(args, "max_results", cfg.MaxPerRun)
		if maxResults < 0 {
			return mcp.NewToolResultError("max_results must not be negative"), nil
		}
		perRecipient := common.GetIntArg(args, "max_per_recipient", cfg.MaxPerRecipient)

		client, err := clientFn()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Gmail is not available: %v", err)), nil
		}

		summary, err := resend.RunBatch(ctx, client, sc.Exclusions(), resend.AlwaysAccept, resend.Settings{
			Options: resend.Options{
				Mode:        resend.ModeImmediate,
				DryRun:      true,
				AutoExclude: cfg.AutoExcludeAfterSend,
				MaxPerRun:   maxResults,
			},
			Keywords:        cfg.JobKeywords,
			PerRecipientCap: perRecipient,
			Prefix:          cfg.ResendPrefix,
			Preamble:        cfg.ResendMessage,
		}, sc.Logger(), sc.Metrics())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Preview failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatPreview(summary)), nil
	}
}

func formatPreview(s resend.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d candidate messages: %d would be resent, %d skipped, %d errors.\n",
		s.Found, s.Resent, s.Skipped, s.Errored)

	for i, o := range s.Outcomes {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, o.Status, o.MessageID)
		if o.To != "" {
			fmt.Fprintf(&b, " to %s", o.To)
		}
		if o.Subject != "" {
			fmt.Fprintf(&b, " (%s)", o.Subject)
		}
		switch {
		case o.Err != nil:
			fmt.Fprintf(&b, ": %v", o.Err)
		case o.Status == resend.StatusSkipped:
			fmt.Fprintf(&b, ": %s", o.Decision.Reason())
		}
		b.WriteString("\n")
	}
	return b.String()
}
