package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/relaybot/claude-webhook/internal/executor"
	"github.com/relaybot/claude-webhook/internal/forward"
	"github.com/relaybot/claude-webhook/internal/github"
)

const testSecret = "test-webhook-secret"

type stubRunner struct {
	mu       sync.Mutex
	requests []*executor.Request
	response string
	err      error
}

func (s *stubRunner) Execute(ctx context.Context, req *executor.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.response, s.err
}

type publishCall struct {
	Owner  string
	Repo   string
	Number int
	Body   string
}

type stubPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (s *stubPublisher) PostComment(ctx context.Context, owner, repo string, number int, body string) (*github.CommentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, publishCall{Owner: owner, Repo: repo, Number: number, Body: body})
	if s.err != nil {
		return nil, s.err
	}
	return &github.CommentRecord{ID: 1, Body: body}, nil
}

func commentEvent(body string) []byte {
	event := map[string]interface{}{
		"action": "created",
		"issue": map[string]interface{}{
			"number": 42,
			"title":  "Widget assembly broken",
		},
		"comment": map[string]interface{}{
			"id":         1001,
			"body":       body,
			"user":       map[string]interface{}{"login": "alice", "type": "User"},
			"created_at": "2025-06-01T12:00:00Z",
		},
		"repository": map[string]interface{}{
			"full_name": "acme/widgets",
			"name":      "widgets",
			"owner":     map[string]interface{}{"login": "acme"},
		},
		"sender": map[string]interface{}{"login": "alice"},
	}
	payload, _ := json.Marshal(event)
	return payload
}

func postWebhook(t *testing.T, h *Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", bytes.NewReader(payload))
	req.Header.Set("X-GitHub-Event", "issue_comment")
	req.Header.Set("X-GitHub-Delivery", "delivery-123")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	w := httptest.NewRecorder()
	h.Handle(w, req)
	return w
}

func newTestHandler(runner *stubRunner, publisher *stubPublisher) *Handler {
	return NewHandler(Options{
		Secret:         testSecret,
		TriggerKeyword: "@MCPClaude",
		Runner:         runner,
		Publisher:      publisher,
	})
}

func TestHandleTriggerDispatchesCommand(t *testing.T) {
	runner := &stubRunner{response: "Here is a summary of the open issues."}
	publisher := &stubPublisher{}
	h := newTestHandler(runner, publisher)

	payload := commentEvent("@MCPClaude summarize open issues")
	w := postWebhook(t, h, payload, SignPayload(payload, testSecret))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["message"] != "Webhook processed successfully" {
		t.Errorf("message = %q, want %q", resp["message"], "Webhook processed successfully")
	}

	if len(runner.requests) != 1 {
		t.Fatalf("runner invoked %d times, want 1", len(runner.requests))
	}
	req := runner.requests[0]
	if req.Repo != "acme/widgets" {
		t.Errorf("Repo = %q, want acme/widgets", req.Repo)
	}
	if req.IssueNumber != 42 || !req.HasIssue {
		t.Errorf("IssueNumber = %d HasIssue = %v, want 42 true", req.IssueNumber, req.HasIssue)
	}
	if req.Command != "summarize open issues" {
		t.Errorf("Command = %q, want %q", req.Command, "summarize open issues")
	}

	if len(publisher.calls) != 1 {
		t.Fatalf("publisher invoked %d times, want 1", len(publisher.calls))
	}
	call := publisher.calls[0]
	if call.Owner != "acme" || call.Repo != "widgets" || call.Number != 42 {
		t.Errorf("published to %s/%s#%d, want acme/widgets#42", call.Owner, call.Repo, call.Number)
	}
	if call.Body != runner.response {
		t.Errorf("published body = %q, want runner response", call.Body)
	}
}

func TestHandleTamperedSignature(t *testing.T) {
	runner := &stubRunner{}
	publisher := &stubPublisher{}
	h := newTestHandler(runner, publisher)

	payload := commentEvent("@MCPClaude summarize open issues")
	w := postWebhook(t, h, payload, SignPayload(payload, "wrong-secret"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["error"] != "Invalid webhook signature" {
		t.Errorf("error = %q, want %q", resp["error"], "Invalid webhook signature")
	}
	if len(runner.requests) != 0 {
		t.Error("runner should not be invoked on signature rejection")
	}
	if len(publisher.calls) != 0 {
		t.Error("publisher should not be invoked on signature rejection")
	}
}

func TestHandleMissingSignatureHeader(t *testing.T) {
	h := newTestHandler(&stubRunner{}, &stubPublisher{})

	payload := commentEvent("@MCPClaude do something")
	w := postWebhook(t, h, payload, "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestHandleNoDispatchCases(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(payload []byte) []byte
		comment string
	}{
		{
			name:    "no trigger keyword",
			comment: "just a regular comment",
		},
		{
			name:    "trigger followed by whitespace only",
			comment: "@MCPClaude    \n\t ",
		},
		{
			name:    "edited action",
			comment: "@MCPClaude summarize open issues",
			mutate: func(payload []byte) []byte {
				return bytes.Replace(payload, []byte(`"action":"created"`), []byte(`"action":"edited"`), 1)
			},
		},
		{
			name:    "bot comment",
			comment: "@MCPClaude summarize open issues",
			mutate: func(payload []byte) []byte {
				return bytes.Replace(payload, []byte(`"type":"User"`), []byte(`"type":"Bot"`), 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{}
			publisher := &stubPublisher{}
			h := newTestHandler(runner, publisher)

			payload := commentEvent(tt.comment)
			if tt.mutate != nil {
				payload = tt.mutate(payload)
			}
			w := postWebhook(t, h, payload, SignPayload(payload, testSecret))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if len(runner.requests) != 0 {
				t.Error("runner should not be invoked")
			}
			if len(publisher.calls) != 0 {
				t.Error("publisher should not be invoked")
			}
		})
	}
}

func TestCommandFailureBecomesErrorComment(t *testing.T) {
	runner := &stubRunner{err: &executor.ExecutionError{Op: "run", Msg: "claude CLI failed: exit status 1"}}
	publisher := &stubPublisher{}
	h := newTestHandler(runner, publisher)

	payload := commentEvent("@MCPClaude break something")
	w := postWebhook(t, h, payload, SignPayload(payload, testSecret))

	// A failed command is not a pipeline failure
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(publisher.calls) != 1 {
		t.Fatalf("publisher invoked %d times, want 1", len(publisher.calls))
	}
	want := "Error processing command: claude CLI failed: exit status 1"
	if publisher.calls[0].Body != want {
		t.Errorf("published body = %q, want %q", publisher.calls[0].Body, want)
	}
}

func TestPublishFailureStillSucceeds(t *testing.T) {
	runner := &stubRunner{response: "result"}
	publisher := &stubPublisher{err: fmt.Errorf("github is down")}
	h := newTestHandler(runner, publisher)

	payload := commentEvent("@MCPClaude do the thing")
	w := postWebhook(t, h, payload, SignPayload(payload, testSecret))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestFanoutIsolation(t *testing.T) {
	var mu sync.Mutex
	received := make(map[string]int)

	makeServer := func(name string, status int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			received[name]++
			mu.Unlock()
			w.WriteHeader(status)
		}))
	}

	ok1 := makeServer("ok1", http.StatusOK)
	defer ok1.Close()
	failing := makeServer("failing", http.StatusInternalServerError)
	defer failing.Close()
	ok2 := makeServer("ok2", http.StatusOK)
	defer ok2.Close()

	runner := &stubRunner{response: "done"}
	publisher := &stubPublisher{}
	h := NewHandler(Options{
		Secret:         testSecret,
		TriggerKeyword: "@MCPClaude",
		ForwardTargets: []forward.Target{
			{URL: ok1.URL},
			{URL: failing.URL},
			{URL: ok2.URL},
		},
		CommentForwardTargets: []forward.Target{{URL: ok1.URL}},
		Forwarder:             forward.New(""),
		Runner:                runner,
		Publisher:             publisher,
	})

	payload := commentEvent("@MCPClaude summarize")
	w := postWebhook(t, h, payload, SignPayload(payload, testSecret))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	// ok1 receives the global fanout and the comment-scoped fanout
	if received["ok1"] != 2 {
		t.Errorf("ok1 received %d deliveries, want 2", received["ok1"])
	}
	if received["failing"] != 1 {
		t.Errorf("failing received %d deliveries, want 1", received["failing"])
	}
	if received["ok2"] != 1 {
		t.Errorf("ok2 received %d deliveries, want 1 despite earlier target failing", received["ok2"])
	}
	if len(runner.requests) != 1 {
		t.Errorf("runner invoked %d times, want 1 (fanout must not block dispatch)", len(runner.requests))
	}
}

func TestForwardHeadersPropagated(t *testing.T) {
	var mu sync.Mutex
	var gotEvent, gotDelivery string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotEvent = r.Header.Get("X-GitHub-Event")
		gotDelivery = r.Header.Get("X-GitHub-Delivery")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h := NewHandler(Options{
		Secret:         testSecret,
		ForwardTargets: []forward.Target{{URL: server.URL}},
		Forwarder:      forward.New(""),
	})

	payload := commentEvent("no trigger here")
	postWebhook(t, h, payload, SignPayload(payload, testSecret))

	mu.Lock()
	defer mu.Unlock()
	if gotEvent != "issue_comment" {
		t.Errorf("X-GitHub-Event = %q, want issue_comment", gotEvent)
	}
	if gotDelivery != "delivery-123" {
		t.Errorf("X-GitHub-Delivery = %q, want delivery-123", gotDelivery)
	}
}

func TestReplayedDeliveryPublishesTwice(t *testing.T) {
	runner := &stubRunner{response: "answer"}
	publisher := &stubPublisher{}
	h := newTestHandler(runner, publisher)

	payload := commentEvent("@MCPClaude answer me")
	signature := SignPayload(payload, testSecret)

	// No deduplication by delivery id: both attempts are independent
	postWebhook(t, h, payload, signature)
	postWebhook(t, h, payload, signature)

	if len(runner.requests) != 2 {
		t.Errorf("runner invoked %d times, want 2", len(runner.requests))
	}
	if len(publisher.calls) != 2 {
		t.Errorf("publisher invoked %d times, want 2", len(publisher.calls))
	}
}

func TestExtractCommand(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      string
		wantFound bool
	}{
		{"simple command", "@MCPClaude summarize open issues", "summarize open issues", true},
		{"trigger mid-comment", "hey @MCPClaude what does this do?", "what does this do?", true},
		{"multiline command", "@MCPClaude explain\nthe build failure", "explain\nthe build failure", true},
		{"no trigger", "just a comment", "", false},
		{"trigger only", "@MCPClaude", "", true},
		{"trigger with whitespace", "@MCPClaude   \t\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractCommand(tt.body, "@MCPClaude")
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if got != tt.want {
				t.Errorf("command = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleIgnoresUnsupportedEvent(t *testing.T) {
	runner := &stubRunner{}
	h := newTestHandler(runner, &stubPublisher{})

	payload := []byte(`{"action":"opened","repository":{"full_name":"acme/widgets"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", bytes.NewReader(payload))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", SignPayload(payload, testSecret))
	w := httptest.NewRecorder()
	h.Handle(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Webhook processed successfully") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if len(runner.requests) != 0 {
		t.Error("runner should not be invoked for non-comment events")
	}
}
