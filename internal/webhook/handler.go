package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/relaybot/claude-webhook/internal/executor"
	"github.com/relaybot/claude-webhook/internal/forward"
	"github.com/relaybot/claude-webhook/internal/github"
)

// CommentPublisher posts a comment body back to an issue or PR thread
type CommentPublisher interface {
	PostComment(ctx context.Context, owner, repo string, number int, body string) (*github.CommentRecord, error)
}

// Forwarder relays a payload to a list of subscriber endpoints
type Forwarder interface {
	FanOut(ctx context.Context, targets []forward.Target, payload interface{}) []forward.Outcome
}

// Options configures the webhook handler
type Options struct {
	Secret           string
	TriggerKeyword   string
	SkipVerification bool
	UseContainers    bool

	ForwardTargets        []forward.Target
	CommentForwardTargets []forward.Target

	Forwarder Forwarder
	Runner    executor.Runner
	Publisher CommentPublisher
}

// Handler handles GitHub webhook events
type Handler struct {
	opts Options
}

// NewHandler creates a new webhook handler
func NewHandler(opts Options) *Handler {
	if opts.TriggerKeyword == "" {
		opts.TriggerKeyword = "@MCPClaude"
	}
	return &Handler{opts: opts}
}

// Handle processes a GitHub webhook delivery: admission, fanout,
// trigger extraction, and command dispatch.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Webhook] Panic while processing webhook: %v", rec)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to process webhook",
			})
		}
	}()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[Webhook] Error reading payload: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to process webhook",
		})
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	delivery := r.Header.Get("X-GitHub-Delivery")
	log.Printf("[Webhook] Received GitHub %s webhook (delivery: %s)", event, delivery)

	// 1. Admission: the signature gate runs before anything else
	if err := h.verify(payload, r.Header.Get("X-Hub-Signature-256")); err != nil {
		log.Printf("[Webhook] Verification failed: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":   "Invalid webhook signature",
			"message": err.Error(),
		})
		return
	}

	ctx := r.Context()

	// 2. Unconditional fanout to globally configured targets.
	// Failures are logged and never affect the response.
	h.forwardRaw(ctx, event, payload, r.Header)

	// 3-5. Comment classification, trigger extraction, command dispatch
	if event == "issue_comment" {
		h.handleIssueComment(ctx, payload)
	} else {
		log.Printf("[Webhook] No comment handling for event type: %s", event)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Webhook processed successfully",
	})
}

// verify checks the inbound signature. The secret and computed digest
// are never logged; only a redacted presence marker is.
func (h *Handler) verify(payload []byte, signature string) error {
	if h.opts.SkipVerification {
		log.Printf("[Webhook] Warning: signature verification skipped by configuration")
		return nil
	}

	secretMarker := "missing"
	if h.opts.Secret != "" {
		secretMarker = "[SECRET REDACTED]"
	}
	log.Printf("[Webhook] Verifying signature (secret: %s)", secretMarker)

	if err := ValidateSignatureHeader(signature); err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSignature, err)
	}
	if !VerifySignature(payload, signature, h.opts.Secret) {
		return ErrBadSignature
	}
	return nil
}

// forwardRaw relays the full event to every global forward target
func (h *Handler) forwardRaw(ctx context.Context, event string, payload []byte, headers http.Header) {
	if len(h.opts.ForwardTargets) == 0 || h.opts.Forwarder == nil {
		return
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		log.Printf("[Webhook] Error parsing payload for forwarding: %v", err)
		return
	}

	action, _ := parsed["action"].(string)
	envelope := forwardedEvent{
		Event:           event,
		Action:          action,
		Sender:          parsed["sender"],
		Repository:      parsed["repository"],
		OriginalPayload: parsed,
	}

	// Propagate the original GitHub headers to subscribers
	extra := map[string]string{
		"X-GitHub-Event":    event,
		"X-GitHub-Delivery": headers.Get("X-GitHub-Delivery"),
	}
	if v := headers.Get("X-Hub-Signature"); v != "" {
		extra["X-Hub-Signature"] = v
	}
	if v := headers.Get("X-Hub-Signature-256"); v != "" {
		extra["X-Hub-Signature-256"] = v
	}

	targets := make([]forward.Target, len(h.opts.ForwardTargets))
	for i, t := range h.opts.ForwardTargets {
		targets[i] = forward.Target{URL: t.URL, Headers: mergeHeaders(t.Headers, extra)}
	}

	outcomes := h.opts.Forwarder.FanOut(ctx, targets, envelope)
	logOutcomes("event", outcomes)
}

func (h *Handler) handleIssueComment(ctx context.Context, payload []byte) {
	var event IssueCommentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("[Webhook] Error parsing issue_comment event: %v", err)
		return
	}

	// Only handle newly created comments
	if event.Action != "created" {
		log.Printf("[Webhook] Ignoring issue_comment action: %s", event.Action)
		return
	}

	log.Printf("[Webhook] Processing comment %d on %s#%d by %s",
		event.Comment.ID, event.Repository.FullName, event.Issue.Number, event.Comment.User.Login)

	// Comment-scoped fanout, same best-effort policy as the global one
	h.forwardComment(ctx, &event)

	// Ignore bot comments to prevent feedback loops
	if event.Comment.User.Type == "Bot" {
		log.Printf("[Webhook] Ignoring comment from bot: %s", event.Comment.User.Login)
		return
	}

	command, found := extractCommand(event.Comment.Body, h.opts.TriggerKeyword)
	if !found {
		return
	}
	if command == "" {
		log.Printf("[Webhook] Trigger found but command is empty, ignoring")
		return
	}

	h.dispatchCommand(ctx, &event, command)
}

func (h *Handler) forwardComment(ctx context.Context, event *IssueCommentEvent) {
	if len(h.opts.CommentForwardTargets) == 0 || h.opts.Forwarder == nil {
		return
	}

	envelope := forwardedComment{
		Event:  "issue_comment",
		Action: event.Action,
		Repository: forwardedRepo{
			Name:     event.Repository.Name,
			FullName: event.Repository.FullName,
			Owner:    event.Repository.Owner.Login,
		},
		Issue: forwardedIssue{
			Number:  event.Issue.Number,
			Title:   event.Issue.Title,
			HTMLURL: event.Issue.HTMLURL,
		},
		Comment: forwardedCmtEntry{
			ID:        event.Comment.ID,
			Body:      event.Comment.Body,
			User:      event.Comment.User.Login,
			CreatedAt: event.Comment.CreatedAt,
		},
	}

	outcomes := h.opts.Forwarder.FanOut(ctx, h.opts.CommentForwardTargets, envelope)
	logOutcomes("comment", outcomes)
}

// dispatchCommand runs the extracted command and posts the result (or the
// failure) back to the thread. Command failures never fail the webhook.
func (h *Handler) dispatchCommand(ctx context.Context, event *IssueCommentEvent, command string) {
	if h.opts.Runner == nil {
		log.Printf("[Webhook] No command runner configured, skipping dispatch")
		return
	}

	log.Printf("[Webhook] Dispatching command for %s#%d (%d chars)",
		event.Repository.FullName, event.Issue.Number, len(command))

	req := &executor.Request{
		Repo:         event.Repository.FullName,
		IssueNumber:  event.Issue.Number,
		HasIssue:     true,
		Command:      command,
		UseContainer: h.opts.UseContainers,
	}

	body, err := h.opts.Runner.Execute(ctx, req)
	if err != nil {
		log.Printf("[Webhook] Error processing command: %v", err)
		body = fmt.Sprintf("Error processing command: %s", executor.Reason(err))
	}

	h.publish(ctx, event, body)
}

func (h *Handler) publish(ctx context.Context, event *IssueCommentEvent, body string) {
	if h.opts.Publisher == nil {
		log.Printf("[Webhook] No comment publisher configured, dropping response")
		return
	}

	record, err := h.opts.Publisher.PostComment(ctx,
		event.Repository.Owner.Login, event.Repository.Name, event.Issue.Number, body)
	if err != nil {
		// A failed publish does not fail the delivery; the inbound event
		// was still validly processed.
		log.Printf("[Webhook] Error posting comment: %v", err)
		return
	}

	log.Printf("[Webhook] Posted comment %d to %s#%d", record.ID, event.Repository.FullName, event.Issue.Number)
}

// extractCommand extracts the command text after the trigger keyword.
// Returns the trimmed command and whether the trigger was found at all.
func extractCommand(body, triggerKeyword string) (string, bool) {
	idx := strings.Index(body, triggerKeyword)
	if idx == -1 {
		return "", false
	}

	remaining := strings.TrimSpace(body[idx+len(triggerKeyword):])
	return remaining, true
}

func mergeHeaders(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range extra {
		merged[k] = v
	}
	// Configured per-target headers win on conflict
	for k, v := range base {
		merged[k] = v
	}
	return merged
}

func logOutcomes(kind string, outcomes []forward.Outcome) {
	for _, o := range outcomes {
		if o.Err != nil {
			log.Printf("[Webhook] Error forwarding %s to %s: %v", kind, o.URL, o.Err)
		} else {
			log.Printf("[Webhook] Forwarded %s to %s (status %d)", kind, o.URL, o.Status)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Webhook] Error encoding response: %v", err)
	}
}
