package executor

import (
	"errors"
	"fmt"
	"strings"
)

// ExecutionError is the single failure type surfaced by all execution
// strategies. Msg carries the underlying diagnostic, never credentials.
type ExecutionError struct {
	Op  string // "clone", "run", "launch", "timeout", "execute"
	Msg string
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Reason extracts the human-readable failure reason used in error
// comments posted back to the thread.
func Reason(err error) string {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Msg
	}
	return err.Error()
}

// scrub removes a credential from a diagnostic string so it can be
// logged or posted publicly
func scrub(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
