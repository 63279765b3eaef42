package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsbet-ev/sportsbet-api/internal/rbac"
)

type stubEnqueuer struct {
	payloads []PreAnalysisPayload
	err      error
}

func (s *stubEnqueuer) EnqueuePreAnalysis(ctx context.Context, p PreAnalysisPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.payloads = append(s.payloads, p)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault, Type: TaskPreAnalysis}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) { return s.info, s.err }

func newTaskRouter(h *Handler, ident *rbac.Identity) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if ident != nil {
				req = req.WithContext(rbac.ContextWithIdentity(req.Context(), ident))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/admin", h.MountRoutes)
	return r
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRunPreAnalysisEndpoint(t *testing.T) {
	admin := &rbac.Identity{UserID: uuid.New(), IsActive: true, IsSuperuser: true}
	enq := &stubEnqueuer{}
	router := newTaskRouter(NewHandler(enq, nil, rbac.Middleware{}, nil), admin)

	rec := serve(router, http.MethodPost, "/admin/tasks/run-pre-analysis", `{"limit":8}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var out enqueueResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "task-1", out.TaskID)
	require.Len(t, enq.payloads, 1)
	assert.Equal(t, 8, enq.payloads[0].Limit)

	rec = serve(router, http.MethodPost, "/admin/tasks/run-pre-analysis", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = serve(router, http.MethodPost, "/admin/tasks/run-pre-analysis", `{"limit":1000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunPreAnalysisSamePayloadForEveryCaller(t *testing.T) {
	enq := &stubEnqueuer{}
	h := NewHandler(enq, nil, rbac.Middleware{}, nil)
	first := newTaskRouter(h, &rbac.Identity{UserID: uuid.New(), IsActive: true, IsSuperuser: true})
	second := newTaskRouter(h, &rbac.Identity{UserID: uuid.New(), IsActive: true, IsSuperuser: true})

	require.Equal(t, http.StatusAccepted, serve(first, http.MethodPost, "/admin/tasks/run-pre-analysis", "").Code)
	require.Equal(t, http.StatusAccepted, serve(second, http.MethodPost, "/admin/tasks/run-pre-analysis", "").Code)
	require.Len(t, enq.payloads, 2)

	a, err := NewPreAnalysisTask(enq.payloads[0])
	require.NoError(t, err)
	b, err := NewPreAnalysisTask(enq.payloads[1])
	require.NoError(t, err)
	scheduled, err := NewPreAnalysisTask(PreAnalysisPayload{})
	require.NoError(t, err)
	assert.Equal(t, a.Payload(), b.Payload(), "unique window must collapse runs from different admins")
	assert.Equal(t, a.Payload(), scheduled.Payload(), "and the scheduled run")
}

func TestRunPreAnalysisEndpointErrors(t *testing.T) {
	admin := &rbac.Identity{UserID: uuid.New(), IsActive: true, IsSuperuser: true}

	dup := newTaskRouter(NewHandler(&stubEnqueuer{err: asynq.ErrDuplicateTask}, nil, rbac.Middleware{}, nil), admin)
	assert.Equal(t, http.StatusConflict, serve(dup, http.MethodPost, "/admin/tasks/run-pre-analysis", "").Code)

	down := newTaskRouter(NewHandler(&stubEnqueuer{err: errors.New("redis down")}, nil, rbac.Middleware{}, nil), admin)
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodPost, "/admin/tasks/run-pre-analysis", "").Code)
}

func TestTaskRoutesRequireSuperuser(t *testing.T) {
	h := NewHandler(&stubEnqueuer{}, nil, rbac.Middleware{}, nil)

	anon := newTaskRouter(h, nil)
	assert.Equal(t, http.StatusUnauthorized, serve(anon, http.MethodGet, "/admin/tasks/health", "").Code)

	user := newTaskRouter(h, &rbac.Identity{UserID: uuid.New(), IsActive: true})
	assert.Equal(t, http.StatusForbidden, serve(user, http.MethodPost, "/admin/tasks/run-pre-analysis", "").Code)
}

func TestHealthEndpoint(t *testing.T) {
	admin := &rbac.Identity{UserID: uuid.New(), IsActive: true, IsSuperuser: true}

	inspector := stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Active: 1, Retry: 2}}
	rec := serve(newTaskRouter(NewHandler(nil, inspector, rbac.Middleware{}, nil), admin), http.MethodGet, "/admin/tasks/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, 4, out.Pending)
	assert.Equal(t, 2, out.Retry)

	rec = serve(newTaskRouter(NewHandler(nil, stubInspector{err: asynq.ErrQueueNotFound}, rbac.Middleware{}, nil), admin), http.MethodGet, "/admin/tasks/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(newTaskRouter(NewHandler(nil, stubInspector{err: errors.New("redis down")}, rbac.Middleware{}, nil), admin), http.MethodGet, "/admin/tasks/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
