package resender_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/resender/internal/instrumentation"
	"github.com/teemow/resender/internal/message"
	"github.com/teemow/resender/internal/server"
	"github.com/teemow/resender/internal/tools/common"
)

func listExclusionsHandler(sc *server.ServerContext) common.ToolHandler {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list := sc.Exclusions().List()
		if len(list) == 0 {
			return mcp.NewToolResultText("The exclusion list is empty."), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%d excluded recipients:\n%s\n", len(list), strings.Join(list, "\n"))), nil
	}
}

func excludeHandler(sc *server.ServerContext) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := common.GetRecipientFromArgs(request.GetArguments())
		if raw == "" {
			return mcp.NewToolResultError("recipient is required"), nil
		}

		addr := strings.ToLower(message.RecipientAddress(raw))
		if !message.ValidAddress(addr) {
			return mcp.NewToolResultError(fmt.Sprintf("%q is not a valid email address", raw)), nil
		}

		added, err := sc.Exclusions().Add(addr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to update exclusion list: %v", err)), nil
		}
		if !added {
			return mcp.NewToolResultText(fmt.Sprintf("%s is already excluded.", addr)), nil
		}

		sc.Metrics().RecordExclusion(ctx, instrumentation.ExclusionSourceUser, addr)
		return mcp.NewToolResultText(fmt.Sprintf("Added %s to the exclusion list.", addr)), nil
	}
}
