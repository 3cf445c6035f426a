package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// localRunner clones the repository into a transient workspace and runs
// the Claude CLI against it. The workspace is removed on every exit path.
type localRunner struct {
	opts Options
	run  commandRunner
}

func (r *localRunner) Execute(ctx context.Context, req *Request) (string, error) {
	token, err := r.opts.TokenSource.Token(req.Repo)
	if err != nil {
		return "", &ExecutionError{Op: "clone", Msg: "failed to obtain clone credentials", Err: err}
	}

	workdir := filepath.Join(os.TempDir(), "claude-"+uuid.NewString())
	if err := os.MkdirAll(workdir, 0o700); err != nil {
		return "", &ExecutionError{Op: "clone", Msg: fmt.Sprintf("failed to create workspace: %v", err)}
	}
	log.Printf("[Executor] Created temporary workspace %s", workdir)

	defer func() {
		log.Printf("[Executor] Cleaning up temporary workspace %s", workdir)
		if err := os.RemoveAll(workdir); err != nil {
			log.Printf("[Executor] Warning: failed to remove workspace: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	// Clone with the short-lived credential embedded in the URL. The URL
	// never appears in errors; clone output is scrubbed before wrapping.
	log.Printf("[Executor] Cloning repository %s", req.Repo)
	cloneURL := fmt.Sprintf("https://x-access-token:%s@github.com/%s.git", token, req.Repo)
	if _, err := r.run.Run(ctx, workdir, nil, "git", "clone", cloneURL, "."); err != nil {
		msg := scrub(fmt.Sprintf("failed to clone repository: %v", err), token)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &ExecutionError{Op: "timeout", Msg: msg}
		}
		return "", &ExecutionError{Op: "clone", Msg: msg}
	}

	args := []string{"--print", req.Command}
	if mcpConfig := buildMCPConfig(req, token); mcpConfig != "" {
		args = append(args, "--mcp-config", mcpConfig)
		log.Printf("[Executor] Using dynamic MCP config (%d bytes)", len(mcpConfig))
	}

	log.Printf("[Executor] Running Claude Code (model: %s, bedrock: %v)", r.modelName(), r.opts.UseBedrock)
	output, err := r.run.Run(ctx, workdir, r.claudeEnv(token), "claude", args...)
	if err != nil {
		msg := scrub(fmt.Sprintf("claude CLI failed: %v", err), token)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &ExecutionError{Op: "timeout", Msg: fmt.Sprintf("command execution timed out after %s", r.opts.Timeout)}
		}
		return "", &ExecutionError{Op: "run", Msg: msg}
	}

	response := string(output)
	log.Printf("[Executor] Claude command processed successfully (%d chars)", len(response))
	return response, nil
}

func (r *localRunner) modelName() string {
	if r.opts.Model == "" {
		return "default"
	}
	return r.opts.Model
}

// claudeEnv builds the child process environment for the CLI invocation.
// Credentials live only in the child's environment, never in arguments
// or persistent logs.
func (r *localRunner) claudeEnv(token string) []string {
	env := os.Environ()
	env = append(env, "GITHUB_TOKEN="+token)
	if r.opts.AnthropicAPIKey != "" {
		env = append(env, "ANTHROPIC_API_KEY="+r.opts.AnthropicAPIKey)
	}
	if r.opts.Model != "" {
		env = append(env, "ANTHROPIC_MODEL="+r.opts.Model)
	}
	if r.opts.UseBedrock {
		env = append(env,
			"CLAUDE_CODE_USE_BEDROCK=1",
			"AWS_ACCESS_KEY_ID="+r.opts.AWSAccessKeyID,
			"AWS_SECRET_ACCESS_KEY="+r.opts.AWSSecretKey,
			"AWS_REGION="+r.opts.AWSRegion,
		)
	}
	return env
}
