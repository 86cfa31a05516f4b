// Package http exposes the inbound webhook endpoint that turns git host push
// events into sync triggers.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/notepress/notepress/pkg/interfaces"
	"github.com/notepress/notepress/sync"
)

// PushHandler reacts to a push event for a repository URL and branch.
// Satisfied by sync.Service.
type PushHandler interface {
	HandlePush(ctx context.Context, repoURL, branch string) error
}

// pushPayload is the subset of a git host push event the gate needs. Both
// GitHub and Gitea shape their payloads this way.
type pushPayload struct {
	Ref        string `json:"ref"`
	Repository struct {
		CloneURL string `json:"clone_url"`
		HTMLURL  string `json:"html_url"`
	} `json:"repository"`
}

// WebhookHandler accepts push events and triggers syncs for the pushed
// branch. Events for other branches and events racing a running sync are
// acknowledged without action.
type WebhookHandler struct {
	syncs  PushHandler
	logger interfaces.Logger
}

// NewWebhookHandler builds the handler.
func NewWebhookHandler(syncs PushHandler, logger interfaces.Logger) *WebhookHandler {
	return &WebhookHandler{syncs: syncs, logger: logger}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload pushPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond(w, http.StatusBadRequest, "malformed payload")
		return
	}

	repoURL := payload.Repository.CloneURL
	if repoURL == "" {
		repoURL = payload.Repository.HTMLURL
	}
	if repoURL == "" {
		respond(w, http.StatusBadRequest, "payload carries no repository url")
		return
	}
	branch := branchFromRef(payload.Ref)
	if branch == "" {
		// Tag pushes and other non-branch refs never trigger a sync.
		respond(w, http.StatusAccepted, "push ignored: not a branch ref")
		return
	}

	err := h.syncs.HandlePush(r.Context(), repoURL, branch)
	switch {
	case err == nil:
		respond(w, http.StatusAccepted, "sync triggered")
	case errors.Is(err, sync.ErrBranchIgnored):
		respond(w, http.StatusAccepted, "push ignored: branch not connected")
	case errors.Is(err, sync.ErrSyncInProgress):
		respond(w, http.StatusAccepted, "push ignored: sync already running")
	case errors.Is(err, sync.ErrRepositoryNotFound):
		respond(w, http.StatusNotFound, "repository not connected")
	default:
		if h.logger != nil {
			h.logger.Error("webhook.push_failed", "repo_url", repoURL, "error", err)
		}
		respond(w, http.StatusInternalServerError, "sync trigger failed")
	}
}

// branchFromRef extracts the branch name from a push ref. Tag pushes yield an
// empty branch and fall through to the branch gate.
func branchFromRef(ref string) string {
	if strings.HasPrefix(ref, "refs/heads/") {
		return strings.TrimPrefix(ref, "refs/heads/")
	}
	return ""
}

func respond(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
