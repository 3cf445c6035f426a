// Package api exposes the direct command endpoint, which dispatches a
// command without going through the GitHub webhook envelope.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/exec"
	"time"

	"github.com/relaybot/claude-webhook/internal/executor"
)

// Handler serves direct command requests
type Handler struct {
	runner         executor.Runner
	authRequired   bool
	authToken      string
	containerImage string
}

// NewHandler creates a direct command handler
func NewHandler(runner executor.Runner, authRequired bool, authToken, containerImage string) *Handler {
	return &Handler{
		runner:         runner,
		authRequired:   authRequired,
		authToken:      authToken,
		containerImage: containerImage,
	}
}

type commandRequest struct {
	RepoFullName string `json:"repoFullName"`
	Command      string `json:"command"`
	AuthToken    string `json:"authToken"`
	UseContainer bool   `json:"useContainer"`
}

// HandleCommand processes a direct command request. Executor failures
// surface in the response body, not as a failed HTTP status.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[API] Error decoding command request: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.RepoFullName == "" {
		log.Printf("[API] Missing repository name in request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Repository name is required"})
		return
	}
	if req.Command == "" {
		log.Printf("[API] Missing command in request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Command is required"})
		return
	}

	if h.authRequired {
		if req.AuthToken == "" || req.AuthToken != h.authToken {
			log.Printf("[API] Invalid authentication token")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid authentication token"})
			return
		}
	}

	log.Printf("[API] Processing direct command for %s (container: %v, %d chars)",
		req.RepoFullName, req.UseContainer, len(req.Command))

	response, err := h.runner.Execute(r.Context(), &executor.Request{
		Repo:         req.RepoFullName,
		HasIssue:     false,
		Command:      req.Command,
		UseContainer: req.UseContainer,
	})
	if err != nil {
		log.Printf("[API] Error during command processing: %v", err)
		response = fmt.Sprintf("Error: %s", executor.Reason(err))
	}
	if response == "" {
		response = "No output received from Claude container. This is a placeholder response."
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Command processed successfully",
		"response": response,
	})
}

type containerTestRequest struct {
	Command string `json:"command"`
}

// HandleTestContainer runs a trivial echo inside the configured image to
// verify the container runtime is reachable
func (h *Handler) HandleTestContainer(w http.ResponseWriter, r *http.Request) {
	var req containerTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	message := req.Command
	if message == "" {
		message = "Test from container"
	}

	name := fmt.Sprintf("claude-test-%d", time.Now().UnixNano())
	log.Printf("[API] Running container test %s", name)

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "run", "--rm", "--name", name, h.containerImage, "echo", message)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("[API] Container test failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Container test failed",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Container test executed successfully",
		"response": string(output),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Error encoding response: %v", err)
	}
}
