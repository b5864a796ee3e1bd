package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amendbot/amend/internal/updater"
	"github.com/amendbot/amend/pkg/apperr"
	"github.com/amendbot/amend/pkg/types"
)

type stubPipeline struct {
	result  *updater.UpdateResult
	preview *updater.PreviewResult
	err     error

	gotRequest updater.Request
}

func (s *stubPipeline) Run(_ context.Context, req updater.Request) (*updater.UpdateResult, error) {
	s.gotRequest = req
	return s.result, s.err
}

func (s *stubPipeline) Preview(_ context.Context, req updater.Request) (*updater.PreviewResult, error) {
	s.gotRequest = req
	return s.preview, s.err
}

func newTestRouter(pipeline Pipeline) http.Handler {
	h := NewHandler(pipeline, zap.NewNop())
	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	router.Get("/health", h.Health(true, true))
	return router
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpdateRepository(t *testing.T) {
	pipeline := &stubPipeline{
		result: &updater.UpdateResult{
			CommitResult: types.CommitResult{
				Branch:       "feature/ai-updates-20260823-120000-ab12cd34",
				CommitSHA:    "newcommit",
				FilesChanged: []string{"app.py"},
				Success:      true,
			},
			Message: `created branch "feature/ai-updates-20260823-120000-ab12cd34" with 1 file changes`,
		},
	}
	router := newTestRouter(pipeline)

	w := postJSON(t, router, "/api/v1/updates",
		`{"repo_url":"https://github.com/acme/widgets","prompt":"add null checks","base_branch":"main"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp UpdateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "feature/ai-updates-20260823-120000-ab12cd34", resp.Branch)
	assert.Equal(t, 1, resp.Commits)
	assert.Equal(t, []string{"app.py"}, resp.FilesChanged)
	assert.Equal(t, "newcommit", resp.CommitSHA)

	assert.Equal(t, "https://github.com/acme/widgets", pipeline.gotRequest.RepoURL)
	assert.Equal(t, "add null checks", pipeline.gotRequest.Prompt)
	assert.Equal(t, "main", pipeline.gotRequest.BaseBranch)
}

func TestUpdateRepositoryNoChanges(t *testing.T) {
	pipeline := &stubPipeline{
		result: &updater.UpdateResult{
			CommitResult: types.CommitResult{
				Branch:       "feature/ai-updates-20260823-120000-ab12cd34",
				FilesChanged: []string{},
				Success:      true,
			},
			Message: "no changes were needed for this prompt",
		},
	}
	router := newTestRouter(pipeline)

	w := postJSON(t, router, "/api/v1/updates",
		`{"repo_url":"https://github.com/acme/widgets","prompt":"do nothing"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp UpdateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.Commits)
	assert.Empty(t, resp.FilesChanged)
	assert.Empty(t, resp.CommitSHA)
}

func TestUpdateRepositoryErrorMapping(t *testing.T) {
	tests := []struct {
		kind       apperr.Kind
		wantStatus int
	}{
		{apperr.KindInvalidInput, http.StatusBadRequest},
		{apperr.KindAuth, http.StatusUnauthorized},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindRateLimited, http.StatusTooManyRequests},
		{apperr.KindAIService, http.StatusBadGateway},
		{apperr.KindParse, http.StatusBadGateway},
		{apperr.KindWrite, http.StatusBadGateway},
		{apperr.KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			pipeline := &stubPipeline{err: apperr.New(tt.kind, "it broke")}
			router := newTestRouter(pipeline)

			w := postJSON(t, router, "/api/v1/updates",
				`{"repo_url":"https://github.com/acme/widgets","prompt":"x"}`)

			require.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, string(tt.kind), resp.Kind)
			assert.Equal(t, "it broke", resp.Message)
		})
	}
}

func TestUpdateRepositoryBadBody(t *testing.T) {
	router := newTestRouter(&stubPipeline{})

	w := postJSON(t, router, "/api/v1/updates", `{"repo_url": not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(apperr.KindInvalidInput), resp.Kind)
}

func TestPreviewChanges(t *testing.T) {
	pipeline := &stubPipeline{
		preview: &updater.PreviewResult{
			FilesToUpdate: 1,
			Changes: []updater.PreviewChange{
				{Path: "app.py", Original: "def main(): pass", Updated: "def main():\n    pass"},
			},
		},
	}
	router := newTestRouter(pipeline)

	w := postJSON(t, router, "/api/v1/previews",
		`{"repo_url":"https://github.com/acme/widgets","prompt":"add null checks","file_pattern":"*.py"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.FilesToUpdate)
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, "app.py", resp.Changes[0].Path)

	assert.Equal(t, "*.py", pipeline.gotRequest.FilePattern)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, true, resp["github_token_set"])
	assert.Equal(t, true, resp["ai_key_set"])
}
