// Package github wraps the GitHub REST API surface this service needs:
// posting issue comments and minting GitHub App installation tokens.
package github

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// CommentRecord describes a posted (or synthesized) issue comment
type CommentRecord struct {
	ID        int64
	Body      string
	CreatedAt time.Time
}

// PublishError wraps a failed comment-creation call
type PublishError struct {
	Repo   string
	Number int
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to post comment to %s#%d: %v", e.Repo, e.Number, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Client posts comments to GitHub issues and pull requests.
// In test mode it synthesizes records without network I/O.
type Client struct {
	gh       *gh.Client
	token    string
	testMode bool
}

// NewClient creates a comment client authenticated with token.
// testMode forces simulated publishing; it is also implied when the
// token does not look like a real GitHub token.
func NewClient(token string, testMode bool) *Client {
	return &Client{
		gh:       gh.NewClient(nil).WithAuthToken(token),
		token:    token,
		testMode: testMode,
	}
}

// WithBaseURL points the client at a different API endpoint (tests)
func (c *Client) WithBaseURL(baseURL string) *Client {
	client, err := c.gh.WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		log.Printf("[GitHub] Invalid base URL %q: %v", baseURL, err)
		return c
	}
	c.gh = client
	return c
}

// RealTokenForm reports whether token looks like a credential GitHub
// actually issues. Personal access tokens carry "ghp_" and App
// installation tokens carry "ghs_"; anything else is a test value.
func RealTokenForm(token string) bool {
	return strings.Contains(token, "ghp_") || strings.Contains(token, "ghs_")
}

// simulated reports whether publishing should be skipped
func (c *Client) simulated() bool {
	return c.testMode || !RealTokenForm(c.token)
}

// PostComment posts body as a comment on the given issue or PR
func (c *Client) PostComment(ctx context.Context, owner, repo string, number int, body string) (*CommentRecord, error) {
	log.Printf("[GitHub] Posting comment to %s/%s#%d (%d chars)", owner, repo, number, len(body))

	if c.simulated() {
		preview := body
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		log.Printf("[GitHub] TEST MODE: Would post comment to %s/%s#%d: %s", owner, repo, number, preview)
		return &CommentRecord{
			ID:        0,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		}, nil
	}

	comment, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{
		Body: gh.String(body),
	})
	if err != nil {
		return nil, &PublishError{Repo: owner + "/" + repo, Number: number, Err: err}
	}

	record := &CommentRecord{
		ID:   comment.GetID(),
		Body: comment.GetBody(),
	}
	if ts := comment.GetCreatedAt(); !ts.IsZero() {
		record.CreatedAt = ts.Time
	}

	log.Printf("[GitHub] Comment posted successfully (ID: %d)", record.ID)
	return record, nil
}
