package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amendbot/amend/internal/updater"
	"github.com/amendbot/amend/pkg/apperr"
)

// Pipeline is the request-handling surface of the update pipeline.
type Pipeline interface {
	Run(ctx context.Context, req updater.Request) (*updater.UpdateResult, error)
	Preview(ctx context.Context, req updater.Request) (*updater.PreviewResult, error)
}

// Handler handles REST API requests.
type Handler struct {
	pipeline Pipeline
	logger   *zap.Logger
}

// NewHandler creates a new REST handler.
func NewHandler(pipeline Pipeline, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// UpdateRequest is the JSON body accepted by the update and preview
// endpoints.
type UpdateRequest struct {
	RepoURL     string `json:"repo_url"`
	Prompt      string `json:"prompt"`
	BaseBranch  string `json:"base_branch"`
	NewBranch   string `json:"new_branch,omitempty"`
	FilePattern string `json:"file_pattern,omitempty"`
}

// UpdateResponse is returned on a successful update.
type UpdateResponse struct {
	Success      bool     `json:"success"`
	Branch       string   `json:"branch"`
	Commits      int      `json:"commits"`
	FilesChanged []string `json:"files_changed"`
	CommitSHA    string   `json:"commit_sha"`
	Message      string   `json:"message"`
}

// PreviewChange is one proposed change in a preview response.
type PreviewChange struct {
	Path     string `json:"path"`
	Original string `json:"original"`
	Updated  string `json:"updated"`
}

// PreviewResponse is returned by the preview endpoint.
type PreviewResponse struct {
	FilesToUpdate int             `json:"files_to_update"`
	Changes       []PreviewChange `json:"changes"`
}

// ErrorResponse is returned with a non-2xx status on any failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// UpdateRepository handles POST /updates.
func (h *Handler) UpdateRepository(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Wrap(apperr.KindInvalidInput, "invalid request body", err))
		return
	}

	result, err := h.pipeline.Run(r.Context(), toPipelineRequest(req))
	if err != nil {
		h.writeError(w, err)
		return
	}

	commits := 0
	if len(result.FilesChanged) > 0 {
		commits = 1
	}
	writeJSON(w, http.StatusOK, UpdateResponse{
		Success:      result.Success,
		Branch:       result.Branch,
		Commits:      commits,
		FilesChanged: result.FilesChanged,
		CommitSHA:    result.CommitSHA,
		Message:      result.Message,
	})
}

// PreviewChanges handles POST /previews.
func (h *Handler) PreviewChanges(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Wrap(apperr.KindInvalidInput, "invalid request body", err))
		return
	}

	preview, err := h.pipeline.Preview(r.Context(), toPipelineRequest(req))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := PreviewResponse{
		FilesToUpdate: preview.FilesToUpdate,
		Changes:       make([]PreviewChange, 0, len(preview.Changes)),
	}
	for _, change := range preview.Changes {
		resp.Changes = append(resp.Changes, PreviewChange(change))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /health. It reports whether the two secrets were
// present at startup without ever echoing them.
func (h *Handler) Health(githubTokenSet, aiKeySet bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "healthy",
			"github_token_set": githubTokenSet,
			"ai_key_set":       aiKeySet,
		})
	}
}

// RegisterRoutes registers REST API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/updates", h.UpdateRepository)
	r.Post("/previews", h.PreviewChanges)
}

func toPipelineRequest(req UpdateRequest) updater.Request {
	return updater.Request{
		RepoURL:     req.RepoURL,
		Prompt:      req.Prompt,
		BaseBranch:  req.BaseBranch,
		NewBranch:   req.NewBranch,
		FilePattern: req.FilePattern,
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	h.logger.Error("request failed",
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	writeJSON(w, statusForKind(kind), ErrorResponse{
		Success: false,
		Kind:    string(kind),
		Message: err.Error(),
	})
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindAIService, apperr.KindParse, apperr.KindWrite:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
