package executor

import (
	"fmt"
	"time"
)

// simulatedResponse builds the deterministic response returned when no
// real credentials are configured. It always names the repository and
// echoes the command so tests can assert on it.
func simulatedResponse(req *Request) string {
	if req.UseContainer {
		return fmt.Sprintf(`Claude Container Response
------------------------
Repository: %s
Command: %s

This is a simulated container-based Claude response.
In production, this would execute Claude inside a Docker container
with access to the specified repository code.
Time: %s`, req.Repo, req.Command, time.Now().UTC().Format(time.RFC3339))
	}

	return fmt.Sprintf(`Hello! I'm Claude responding to your question: "%s"

Since this is a test environment, I'm providing a simulated response. In production, I would:
1. Clone the repository %s
2. Research the codebase
3. Provide an informed answer to your question

For real functionality, please configure valid GitHub and Claude API tokens.`, req.Command, req.Repo)
}
