package playground

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/layout"
	apperrors "github.com/yanqian/evaluator-ai/pkg/errors"
)

func TestCreateSessionStartsFromDefaults(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()

	view, token, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, view.ID)
	require.Equal(t, evalconfig.Defaults().ChunkSize, view.Config.ChunkSize)
	require.Empty(t, view.Config.Files)
	require.Equal(t, layout.NavClosed, view.Shell.Nav)
	require.False(t, view.Shell.Opened)

	claims, err := h.svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, view.ID, claims.SessionID)
	require.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestValidateTokenRejectsForeignTokens(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	other := newTokenSigner("another-secret", time.Hour)
	foreign, err := other.issue(uuid.New(), time.Now())
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":   "",
		"garbage": "not-a-jwt",
		"foreign": foreign,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.ValidateToken(context.Background(), token)
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidToken))
		})
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	signer := newTokenSigner("secret", time.Minute)
	token, err := signer.issue(uuid.New(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = signer.parse(token)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidToken))
}

func TestUpdateConfig(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)

	updated, err := h.svc.UpdateConfig(ctx, view.ID, evalconfig.FieldChunkSize, 500)
	require.NoError(t, err)
	require.Equal(t, 500, updated.Config.ChunkSize)

	_, err = h.svc.UpdateConfig(ctx, view.ID, evalconfig.FieldChunkSize, -1)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidField))
	fields, ok := evalconfig.AsFieldErrors(err)
	require.True(t, ok)
	require.Contains(t, fields, evalconfig.FieldChunkSize)

	current, err := h.svc.GetSession(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, 500, current.Config.ChunkSize)
}

func TestApplyConfigIsAllOrNothing(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = h.svc.ApplyConfig(ctx, view.ID, map[string]any{
		evalconfig.FieldNumNeighbors: 7,
		evalconfig.FieldModel:        "llama",
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidField))

	current, err := h.svc.GetSession(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, evalconfig.Defaults().NumNeighbors, current.Config.NumNeighbors)

	updated, err := h.svc.ApplyConfig(ctx, view.ID, map[string]any{
		evalconfig.FieldNumNeighbors: 7,
		evalconfig.FieldModel:        string(evalconfig.ModelGPT4),
	})
	require.NoError(t, err)
	require.Equal(t, 7, updated.Config.NumNeighbors)
	require.Equal(t, evalconfig.ModelGPT4, updated.Config.Model)

	_, err = h.svc.ApplyConfig(ctx, view.ID, nil)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	_, err := h.svc.UpdateConfig(context.Background(), uuid.New(), evalconfig.FieldChunkSize, 10)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestUploadFilesKeepsOrderAndLimits(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)

	updated, err := h.svc.UploadFiles(ctx, view.ID, []Upload{
		{Filename: "b.txt", MimeType: "text/plain", Data: []byte("second")},
		{Filename: "dir/a.pdf", MimeType: "application/pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	require.Len(t, updated.Config.Files, 2)
	require.Equal(t, "b.txt", updated.Config.Files[0].Name)
	require.Equal(t, "a.pdf", updated.Config.Files[1].Name)
	require.Equal(t, int64(6), updated.Config.Files[0].SizeBytes)
	require.Equal(t, 2, h.blobs.count())

	cases := map[string][]Upload{
		"unsupported": {{Filename: "x.exe", Data: []byte("MZ")}},
		"empty":       {{Filename: "x.txt"}},
		"too large":   {{Filename: "x.txt", Data: make([]byte, 65)}},
		"too many":    {{Filename: "c.txt", Data: []byte("c")}, {Filename: "d.txt", Data: []byte("d")}},
		"none":        nil,
	}
	for name, uploads := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.UploadFiles(ctx, view.ID, uploads)
			require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
		})
	}
	require.Equal(t, 2, h.blobs.count())
}

func TestUploadFilesStorageFailure(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)
	h.blobs.fail = true

	_, err = h.svc.UploadFiles(ctx, view.ID, []Upload{{Filename: "a.txt", Data: []byte("a")}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeStorage))

	current, err := h.svc.GetSession(ctx, view.ID)
	require.NoError(t, err)
	require.Empty(t, current.Config.Files)
}

func TestUploadFilesDiscardsBlobsWhenSessionSaveFails(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)
	h.sessions.mu.Lock()
	h.sessions.failSave = true
	h.sessions.mu.Unlock()

	_, err = h.svc.UploadFiles(ctx, view.ID, []Upload{
		{Filename: "a.txt", Data: []byte("a")},
		{Filename: "b.txt", Data: []byte("b")},
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeStorage))
	require.Zero(t, h.blobs.count())

	h.sessions.mu.Lock()
	h.sessions.failSave = false
	h.sessions.mu.Unlock()
	current, err := h.svc.GetSession(ctx, view.ID)
	require.NoError(t, err)
	require.Empty(t, current.Config.Files)
}

func TestRemoveFileAndReset(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)
	updated, err := h.svc.UploadFiles(ctx, view.ID, []Upload{
		{Filename: "a.txt", Data: []byte("a")},
		{Filename: "b.txt", Data: []byte("b")},
	})
	require.NoError(t, err)

	_, err = h.svc.UpdateConfig(ctx, view.ID, evalconfig.FieldOverlap, 10)
	require.NoError(t, err)
	reset, err := h.svc.ResetConfig(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, evalconfig.Defaults().Overlap, reset.Config.Overlap)
	require.Len(t, reset.Config.Files, 2)

	first := updated.Config.Files[0]
	removed, err := h.svc.RemoveFile(ctx, view.ID, first.ID)
	require.NoError(t, err)
	require.Len(t, removed.Config.Files, 1)
	require.Equal(t, "b.txt", removed.Config.Files[0].Name)
	require.Equal(t, 1, h.blobs.count())

	_, err = h.svc.RemoveFile(ctx, view.ID, first.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestToggleNav(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)

	shell, err := h.svc.ToggleNav(ctx, view.ID, 375)
	require.NoError(t, err)
	require.Equal(t, layout.NavOpen, shell.Nav)
	require.True(t, shell.Narrow)

	shell, err = h.svc.ToggleNav(ctx, view.ID, 0)
	require.NoError(t, err)
	require.Equal(t, layout.NavClosed, shell.Nav)
	require.Equal(t, 375, shell.ViewportWidth)

	current, err := h.svc.ReportViewport(ctx, view.ID, 1280)
	require.NoError(t, err)
	require.False(t, current.Shell.Narrow)
	require.Equal(t, layout.NavClosed, current.Shell.Nav)
}

func TestEndSessionRemovesEverything(t *testing.T) {
	h := newHarness(&stubBackend{results: sampleResults()}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = h.svc.UploadFiles(ctx, view.ID, []Upload{{Filename: "a.txt", Data: []byte("a")}})
	require.NoError(t, err)
	run, err := h.svc.Submit(ctx, view.ID, SubmitRequest{})
	require.NoError(t, err)

	require.NoError(t, h.svc.EndSession(ctx, view.ID))
	require.Zero(t, h.blobs.count())
	_, found, err := h.runs.Get(ctx, run.ID)
	require.NoError(t, err)
	require.False(t, found)

	_, err = h.svc.GetSession(ctx, view.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	require.True(t, apperrors.IsCode(h.svc.EndSession(ctx, view.ID), apperrors.CodeNotFound))
}

func TestSweepExpired(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	live, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)
	stale, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = h.svc.UploadFiles(ctx, stale.ID, []Upload{{Filename: "a.txt", Data: []byte("a")}})
	require.NoError(t, err)
	_, err = h.svc.UploadFiles(ctx, live.ID, []Upload{{Filename: "b.txt", Data: []byte("b")}})
	require.NoError(t, err)

	h.sessions.expire(stale.ID)
	swept, err := h.svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, swept)
	require.Equal(t, 1, h.blobs.count())

	swept, err = h.svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, swept)
}

func TestSubmitRequiresValidSnapshot(t *testing.T) {
	h := newHarness(&stubBackend{}, false)
	ctx := context.Background()
	view, _, err := h.svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = h.svc.Submit(ctx, view.ID, SubmitRequest{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidField))
	fields, ok := evalconfig.AsFieldErrors(err)
	require.True(t, ok)
	require.Contains(t, fields, evalconfig.FieldFiles)

	_, err = h.svc.Submit(ctx, view.ID, SubmitRequest{TestDataset: []evaluator.QAPair{{Question: "q"}}})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	require.Zero(t, h.backend.calls)
}
