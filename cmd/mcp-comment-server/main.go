package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	requiredEnv := []string{"GITHUB_TOKEN", "REPO_OWNER", "REPO_NAME", "ISSUE_NUMBER"}
	for _, env := range requiredEnv {
		if os.Getenv(env) == "" {
			log.Fatalf("[MCP Comment Server] Missing required environment variable: %s", env)
		}
	}

	log.Println("[MCP Comment Server] Starting GitHub comment MCP server")
	log.Printf("[MCP Comment Server] Repository: %s/%s issue #%s",
		os.Getenv("REPO_OWNER"), os.Getenv("REPO_NAME"), os.Getenv("ISSUE_NUMBER"))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "github-comment-server",
		Version: "v1.0.0",
	}, nil)

	tool := &mcp.Tool{
		Name:        "post_comment",
		Description: "Post a progress or result comment to the issue or PR thread that triggered this command",
	}
	mcp.AddTool(server, tool, HandlePostComment)
	log.Println("[MCP Comment Server] Registered tool: post_comment")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[MCP Comment Server] Received shutdown signal")
		cancel()
	}()

	log.Println("[MCP Comment Server] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("[MCP Comment Server] Server error: %v", err)
	}
	log.Println("[MCP Comment Server] Server stopped gracefully")
}
