// Package forward delivers event payloads to externally configured
// subscriber endpoints. Each delivery is a single POST attempt; there is
// no retry or backoff, and targets are fully independent of each other.
package forward

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const defaultUserAgent = "Claude-GitHub-Outgoing-Webhook"

// Target is one subscriber endpoint. Headers, when set, override the
// forwarder's default headers on conflict.
type Target struct {
	URL     string
	Headers map[string]string
}

// Outcome records the result of one forward attempt
type Outcome struct {
	URL    string
	Status int
	Err    error
}

// Forwarder posts JSON payloads to subscriber endpoints, optionally
// signing them with an outbound shared secret.
type Forwarder struct {
	secret string
	client *http.Client
}

// New creates a forwarder. secret may be empty, in which case outbound
// payloads are not signed.
func New(secret string) *Forwarder {
	return &Forwarder{
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Forward serializes the payload and delivers it to a single target.
// A non-2xx response is reported as an error.
func (f *Forwarder) Forward(ctx context.Context, target Target, payload interface{}) error {
	_, err := f.deliver(ctx, target, payload)
	return err
}

func (f *Forwarder) deliver(ctx context.Context, target Target, payload interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	// Sign the serialized payload when an outbound secret is configured
	if f.secret != "" {
		mac := hmac.New(sha256.New, []byte(f.secret))
		mac.Write(body)
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	// Caller-supplied headers take precedence
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to trigger webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("webhook %s responded with status %d", target.URL, resp.StatusCode)
	}

	return resp.StatusCode, nil
}

// FanOut delivers the payload to every target independently and collects
// the outcomes. No target's failure prevents delivery to the others, and
// the caller inspects outcomes only for logging.
func (f *Forwarder) FanOut(ctx context.Context, targets []Target, payload interface{}) []Outcome {
	outcomes := make([]Outcome, 0, len(targets))
	for _, target := range targets {
		if target.URL == "" {
			continue
		}

		log.Printf("[Forward] Triggering outgoing webhook: %s", target.URL)
		status, err := f.deliver(ctx, target, payload)
		outcomes = append(outcomes, Outcome{URL: target.URL, Status: status, Err: err})
	}
	return outcomes
}

// Targets converts a flat URL list into Targets with no extra headers
func Targets(urls []string) []Target {
	targets := make([]Target, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		targets = append(targets, Target{URL: u})
	}
	return targets
}
