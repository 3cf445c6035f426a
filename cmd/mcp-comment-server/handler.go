package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relaybot/claude-webhook/internal/github"
)

// PostCommentParams defines the input parameters for the tool
type PostCommentParams struct {
	Body string `json:"body" jsonschema:"The comment content to post"`
}

// HandlePostComment handles the post_comment tool call by creating a new
// comment on the issue identified by the server's environment.
func HandlePostComment(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params PostCommentParams,
) (*mcp.CallToolResult, any, error) {
	log.Printf("[MCP Comment Server] Received post_comment request")

	owner := os.Getenv("REPO_OWNER")
	repo := os.Getenv("REPO_NAME")
	issueStr := os.Getenv("ISSUE_NUMBER")
	token := os.Getenv("GITHUB_TOKEN")

	if params.Body == "" {
		return nil, nil, fmt.Errorf("body parameter is required")
	}

	issueNumber, err := strconv.Atoi(issueStr)
	if err != nil {
		log.Printf("[MCP Comment Server] Invalid ISSUE_NUMBER: %v", err)
		return nil, nil, fmt.Errorf("invalid ISSUE_NUMBER: %w", err)
	}

	client := github.NewClient(token, false)
	record, err := client.PostComment(ctx, owner, repo, issueNumber, params.Body)
	if err != nil {
		log.Printf("[MCP Comment Server] Failed to post comment: %v", err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)},
			},
			IsError: true,
		}, nil, nil
	}

	resultText := fmt.Sprintf(`{
  "success": true,
  "owner": %q,
  "repo": %q,
  "issue_number": %d,
  "comment_id": %d,
  "body_length": %d
}`, owner, repo, issueNumber, record.ID, len(params.Body))

	log.Printf("[MCP Comment Server] Posted comment #%d to %s/%s#%d", record.ID, owner, repo, issueNumber)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: resultText},
		},
	}, nil, nil
}
