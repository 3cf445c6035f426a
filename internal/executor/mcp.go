package executor

import (
	"encoding/json"
	"log"
	"os/exec"
	"strconv"
)

// mcpServerConfig mirrors the CLI's --mcp-config server entry
type mcpServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

type mcpConfig struct {
	MCPServers map[string]mcpServerConfig `json:"mcpServers"`
}

// buildMCPConfig generates the MCP configuration passed to the CLI so it
// can post progress back to the originating thread. Returns "" when
// there is no issue context or the comment server binary is unavailable.
func buildMCPConfig(req *Request, token string) string {
	if !req.HasIssue {
		return ""
	}

	owner, name, ok := splitRepo(req.Repo)
	if !ok {
		return ""
	}

	if _, err := exec.LookPath("mcp-comment-server"); err != nil {
		log.Printf("[Executor] mcp-comment-server not found in PATH, comment updates via MCP unavailable")
		return ""
	}

	config := mcpConfig{
		MCPServers: map[string]mcpServerConfig{
			"comment_updater": {
				Command: "mcp-comment-server",
				Env: map[string]string{
					"GITHUB_TOKEN": token,
					"REPO_OWNER":   owner,
					"REPO_NAME":    name,
					"ISSUE_NUMBER": strconv.Itoa(req.IssueNumber),
				},
			},
		},
	}

	blob, err := json.Marshal(config)
	if err != nil {
		log.Printf("[Executor] Warning: failed to marshal MCP config: %v", err)
		return ""
	}
	return string(blob)
}

func splitRepo(full string) (owner, name string, ok bool) {
	for i := 0; i < len(full); i++ {
		if full[i] == '/' {
			if i == 0 || i == len(full)-1 {
				return "", "", false
			}
			return full[:i], full[i+1:], true
		}
	}
	return "", "", false
}
