package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/layout"
	"github.com/yanqian/evaluator-ai/internal/domain/playground"
	"github.com/yanqian/evaluator-ai/internal/infra/config"
	"github.com/yanqian/evaluator-ai/internal/infra/extract"
	"github.com/yanqian/evaluator-ai/internal/infra/queue"
	"github.com/yanqian/evaluator-ai/internal/infra/runrepo"
	"github.com/yanqian/evaluator-ai/internal/infra/sessionstore"
	"github.com/yanqian/evaluator-ai/internal/infra/storage"
	"github.com/yanqian/evaluator-ai/pkg/metrics"
)

type stubBackend struct{}

func (stubBackend) Evaluate(ctx context.Context, req evaluator.Request, emit func(evaluator.QuestionResult)) (evaluator.Summary, error) {
	results := []evaluator.QuestionResult{
		{Index: 0, Question: "q1", Answer: "a1", Result: "a1", AnswerScore: evaluator.Grade{Score: evaluator.ScoreCorrect}, RetrievalScore: evaluator.Grade{Score: evaluator.ScoreCorrect}},
		{Index: 1, Question: "q2", Answer: "a2", Result: "x", AnswerScore: evaluator.Grade{Score: evaluator.ScoreIncorrect}, RetrievalScore: evaluator.Grade{Score: evaluator.ScoreCorrect}},
	}
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return evaluator.Summary{}, err
		}
		emit(r)
	}
	return evaluator.Summarize(results, metrics.TokenUsage{}), nil
}

type testServer struct {
	server *http.Server
	queue  *queue.ImmediateQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := newTestLogger()
	q := queue.NewImmediateQueue(nil)
	svc := playground.NewService(playground.Config{
		TokenSecret:        "test-secret",
		MaxFiles:           3,
		MaxFileBytes:       1 << 10,
		StreamPollInterval: 10 * time.Millisecond,
	}, sessionstore.NewMemoryStore(), runrepo.NewMemoryRepository(), storage.NewMemoryStorage(), q, stubBackend{}, extract.New(), nil, logger)
	q.SetHandler(svc.HandleJob)
	t.Cleanup(func() {
		svc.Shutdown()
		q.Stop()
	})
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	return &testServer{server: NewRouter(cfg, NewHandler(svc, logger), logger), queue: q}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) json(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return s.do(t, method, path, token, reader, "application/json")
}

func (s *testServer) createSession(t *testing.T) (playground.SessionView, string) {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/api/v1/playground/sessions", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Session playground.SessionView `json:"session"`
		Token   string                 `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Session, resp.Token
}

func (s *testServer) upload(t *testing.T, base, token string, names ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("some document text about " + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return s.do(t, http.MethodPost, base+"/files", token, &buf, w.FormDataContentType())
}

func TestRouter_ConfigDefaultsAndOptions(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.json(t, http.MethodGet, "/api/v1/config/defaults", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg evalconfig.EvaluationConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.Equal(t, evalconfig.Defaults(), cfg)

	rec = srv.json(t, http.MethodGet, "/api/v1/config/options", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var opts struct {
		Fields []evalconfig.FieldOption `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	require.Len(t, opts.Fields, 11)
}

func TestRouter_GradingPrompt(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.json(t, http.MethodGet, "/api/v1/prompts/grading?style=Fast&language=en&kind=docs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "grade_docs_fast")

	rec = srv.json(t, http.MethodGet, "/api/v1/prompts/grading?language=fr", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
}

func TestRouter_SessionAuth(t *testing.T) {
	srv := newTestServer(t)
	session, token := srv.createSession(t)
	other, _ := srv.createSession(t)
	base := "/api/v1/playground/sessions/" + session.ID.String()

	rec := srv.json(t, http.MethodGet, base, "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.json(t, http.MethodGet, base, "not-a-token", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "invalid_token", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])

	rec = srv.json(t, http.MethodGet, "/api/v1/playground/sessions/"+other.ID.String(), token, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.json(t, http.MethodGet, base, token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view playground.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, session.ID, view.ID)
	require.Equal(t, layout.NavClosed, view.Shell.Nav)
	require.Equal(t, evalconfig.Defaults().ChunkSize, view.Config.ChunkSize)
}

func TestRouter_PatchConfig(t *testing.T) {
	srv := newTestServer(t)
	session, token := srv.createSession(t)
	base := "/api/v1/playground/sessions/" + session.ID.String()

	rec := srv.json(t, http.MethodPatch, base+"/config", token, `{"field":"chunkSize","value":800}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var view playground.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, 800, view.Config.ChunkSize)
	require.Equal(t, evalconfig.Defaults().Overlap, view.Config.Overlap)

	rec = srv.json(t, http.MethodPatch, base+"/config", token, `{"fields":{"model":"gpt-4","numNeighbors":-1}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_field", errBody["error"]["code"])
	fields, ok := errBody["error"]["fields"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, fields, "numNeighbors")

	rec = srv.json(t, http.MethodGet, base, token, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, evalconfig.ModelWenxin, view.Config.Model)

	rec = srv.json(t, http.MethodPatch, base+"/config", token, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.json(t, http.MethodPost, base+"/config/reset", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, evalconfig.Defaults().ChunkSize, view.Config.ChunkSize)
}

func TestRouter_FilesAndNav(t *testing.T) {
	srv := newTestServer(t)
	session, token := srv.createSession(t)
	base := "/api/v1/playground/sessions/" + session.ID.String()

	rec := srv.upload(t, base, token, "a.txt", "b.md")
	require.Equal(t, http.StatusOK, rec.Code)
	var view playground.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Config.Files, 2)
	require.Equal(t, "a.txt", view.Config.Files[0].Name)
	require.Equal(t, "b.md", view.Config.Files[1].Name)

	rec = srv.upload(t, base, token, "c.txt", "d.txt")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.json(t, http.MethodDelete, base+"/files/"+view.Config.Files[0].ID.String(), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Config.Files, 1)

	rec = srv.json(t, http.MethodDelete, base+"/files/not-a-uuid", token, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.json(t, http.MethodPost, base+"/nav/toggle?vw=375", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var shell layout.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shell))
	require.True(t, shell.Opened)
	require.True(t, shell.Narrow)

	rec = srv.json(t, http.MethodPost, base+"/nav/toggle", token, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &shell))
	require.False(t, shell.Opened)
	require.Equal(t, 375, shell.ViewportWidth)

	rec = srv.json(t, http.MethodPost, base+"/viewport", token, `{"width":1280}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.False(t, view.Shell.Narrow)
}

func TestRouter_SubmitRequiresFiles(t *testing.T) {
	srv := newTestServer(t)
	session, token := srv.createSession(t)
	base := "/api/v1/playground/sessions/" + session.ID.String()

	rec := srv.json(t, http.MethodPost, base+"/runs", token, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	fields, ok := errBody["error"]["fields"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, fields, "files")
}

func TestRouter_SubmitAndStream(t *testing.T) {
	srv := newTestServer(t)
	session, token := srv.createSession(t)
	base := "/api/v1/playground/sessions/" + session.ID.String()

	require.Equal(t, http.StatusOK, srv.upload(t, base, token, "notes.txt").Code)

	rec := srv.json(t, http.MethodPost, base+"/runs", token, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var run playground.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, playground.RunPending, run.Status)
	runPath := base + "/runs/" + run.ID.String()

	require.Eventually(t, func() bool {
		rec := srv.json(t, http.MethodGet, runPath, token, "")
		var got playground.Run
		if json.Unmarshal(rec.Body.Bytes(), &got) != nil {
			return false
		}
		return got.Status == playground.RunSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	rec = srv.json(t, http.MethodGet, runPath+"/stream", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	events := decodeEvents(t, rec.Body.String())
	require.Len(t, events, 4)
	require.Equal(t, playground.EventStatus, events[0].Type)
	require.Equal(t, "q1", events[1].Result.Question)
	require.Equal(t, "q2", events[2].Result.Question)
	require.Equal(t, playground.EventDone, events[3].Type)
	require.Equal(t, 0.5, events[3].Summary.AnswerAccuracy)

	rec = srv.json(t, http.MethodGet, base+"/runs", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []playground.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)

	rec = srv.json(t, http.MethodPost, runPath+"/cancel", token, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.json(t, http.MethodDelete, base, token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = srv.json(t, http.MethodGet, base, token, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_PlaygroundPage(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.json(t, http.MethodGet, "/playground?vw=375&nav=open", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Evaluator AI - evaluate your QA chains.")
	require.Contains(t, body, `<header class="compact">`)
	require.Contains(t, body, `<nav id="sidebar" class="open">`)
	require.Contains(t, body, `<option value="wenxin" selected>`)
	require.Contains(t, body, `href="/playground?nav=closed&amp;vw=375"`)
	require.NotContains(t, body, `type="submit"`)

	rec = srv.json(t, http.MethodGet, "/playground", "", "")
	body = rec.Body.String()
	require.Contains(t, body, `<header class="">`)
	require.Contains(t, body, `<nav id="sidebar" class="closed">`)
	require.Contains(t, body, `href="/playground?nav=open"`)
}

func TestRouter_Healthz(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.json(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func decodeEvents(t *testing.T, payload string) []playground.RunEvent {
	t.Helper()
	var events []playground.RunEvent
	for _, frame := range strings.Split(strings.TrimSpace(payload), "\n\n") {
		for _, line := range strings.Split(frame, "\n") {
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev playground.RunEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			events = append(events, ev)
		}
	}
	return events
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]any {
	t.Helper()
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
