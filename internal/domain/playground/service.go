package playground

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/layout"
	apperrors "github.com/yanqian/evaluator-ai/pkg/errors"
	"github.com/yanqian/evaluator-ai/pkg/metrics"
	"github.com/yanqian/evaluator-ai/pkg/util"
)

// JobEvaluateRun is the queue job name for evaluation runs.
const JobEvaluateRun = "evaluate_run"

// Config bounds sessions and uploads.
type Config struct {
	SessionTTL         time.Duration
	TokenSecret        string
	TokenTTL           time.Duration
	MaxFiles           int
	MaxFileBytes       int64
	NarrowViewportPx   int
	StreamPollInterval time.Duration
}

// Service owns playground sessions and their evaluation runs.
type Service struct {
	cfg      Config
	sessions SessionStore
	runs     RunRepository
	storage  ObjectStorage
	queue    JobQueue
	backend  evaluator.Backend
	files    FileValidator
	tokens   tokenSigner
	metrics  *metrics.Evaluator
	logger   *slog.Logger
	now      func() time.Time

	locks    sync.Map // uuid.UUID -> *sync.Mutex
	trackMu  sync.Mutex
	tracked  map[uuid.UUID]struct{}
	inflight *inflightRuns
	broker   *broker
}

// NewService wires the playground service.
func NewService(cfg Config, sessions SessionStore, runs RunRepository, storage ObjectStorage, queue JobQueue, backend evaluator.Backend, files FileValidator, m *metrics.Evaluator, logger *slog.Logger) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 20 << 20
	}
	if cfg.NarrowViewportPx <= 0 {
		cfg.NarrowViewportPx = layout.DefaultNarrowThreshold
	}
	if cfg.StreamPollInterval <= 0 {
		cfg.StreamPollInterval = 2 * time.Second
	}
	log := logger.With("component", "playground.service")
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		log.Warn("token secret not configured, using an ephemeral secret")
	}
	return &Service{
		cfg:      cfg,
		sessions: sessions,
		runs:     runs,
		storage:  storage,
		queue:    queue,
		backend:  backend,
		files:    files,
		tokens:   newTokenSigner(cfg.TokenSecret, cfg.TokenTTL),
		metrics:  m,
		logger:   log,
		now:      util.NowUTC,
		tracked:  make(map[uuid.UUID]struct{}),
		inflight: newInflightRuns(),
		broker:   newBroker(),
	}
}

// CreateSession mounts a new playground with default configuration and a
// closed navigation drawer.
func (s *Service) CreateSession(ctx context.Context) (SessionView, string, error) {
	now := s.now()
	session := Session{
		ID:        uuid.New(),
		Config:    evalconfig.NewDefaultForm().Snapshot(),
		Nav:       layout.NavClosed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		return SessionView{}, "", apperrors.Wrap(apperrors.CodeStorage, "failed to save session", err)
	}
	token, err := s.tokens.issue(session.ID, now)
	if err != nil {
		return SessionView{}, "", err
	}
	s.track(session.ID)
	s.metrics.SessionOpened()
	s.logger.Info("session created", "session_id", session.ID)
	return s.view(session), token, nil
}

// ValidateToken verifies a bearer token and returns the session it names.
func (s *Service) ValidateToken(ctx context.Context, token string) (Claims, error) {
	return s.tokens.parse(token)
}

// GetSession returns the session view. The TTL is refreshed on every read.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (SessionView, error) {
	var out SessionView
	err := s.withSession(ctx, id, func(session *Session) (bool, error) {
		out = s.view(*session)
		return true, nil
	})
	return out, err
}

// EndSession unmounts the playground: in-flight runs are canceled and every
// stored blob and run is removed.
func (s *Service) EndSession(ctx context.Context, id uuid.UUID) error {
	lock := s.lock(id)
	lock.Lock()
	defer lock.Unlock()
	if _, found, err := s.sessions.Get(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to load session", err)
	} else if !found {
		return apperrors.Wrap(apperrors.CodeNotFound, "session not found", nil)
	}
	if err := s.cleanup(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to delete session", err)
	}
	s.locks.Delete(id)
	s.logger.Info("session ended", "session_id", id)
	return nil
}

// UpdateConfig edits one field of the session's form.
func (s *Service) UpdateConfig(ctx context.Context, id uuid.UUID, field string, value any) (SessionView, error) {
	return s.editForm(ctx, id, func(form *evalconfig.Form) error {
		return form.Update(field, value)
	})
}

// ApplyConfig edits several fields atomically.
func (s *Service) ApplyConfig(ctx context.Context, id uuid.UUID, values map[string]any) (SessionView, error) {
	if len(values) == 0 {
		return SessionView{}, apperrors.Wrap(apperrors.CodeInvalidInput, "no fields to update", nil)
	}
	return s.editForm(ctx, id, func(form *evalconfig.Form) error {
		return form.Apply(values)
	})
}

// ResetConfig restores defaults. Uploaded files are kept.
func (s *Service) ResetConfig(ctx context.Context, id uuid.UUID) (SessionView, error) {
	return s.editForm(ctx, id, func(form *evalconfig.Form) error {
		form.Reset()
		return nil
	})
}

// UploadFiles stores the uploads and appends them to the form in order.
func (s *Service) UploadFiles(ctx context.Context, id uuid.UUID, uploads []Upload) (SessionView, error) {
	if len(uploads) == 0 {
		return SessionView{}, apperrors.Wrap(apperrors.CodeInvalidInput, "no files uploaded", nil)
	}
	for _, up := range uploads {
		if err := s.checkUpload(up); err != nil {
			return SessionView{}, err
		}
	}
	var (
		out    SessionView
		stored []evalconfig.FileRef
	)
	err := s.withSession(ctx, id, func(session *Session) (bool, error) {
		if len(session.Config.Files)+len(uploads) > s.cfg.MaxFiles {
			return false, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("at most %d files per session", s.cfg.MaxFiles), nil)
		}
		refs := make([]evalconfig.FileRef, 0, len(uploads))
		for _, up := range uploads {
			ref, err := s.store(ctx, id, up)
			if err != nil {
				s.discard(ctx, refs)
				return false, err
			}
			refs = append(refs, ref)
		}
		stored = refs
		form := evalconfig.NewForm(session.Config)
		form.AddFiles(refs...)
		session.Config = form.Snapshot()
		out = s.view(*session)
		return true, nil
	})
	if err != nil {
		// The blobs were written but the session never referenced them.
		s.discard(ctx, stored)
		return SessionView{}, err
	}
	return out, nil
}

// RemoveFile drops an uploaded file and deletes its blob.
func (s *Service) RemoveFile(ctx context.Context, id, fileID uuid.UUID) (SessionView, error) {
	var (
		out     SessionView
		removed evalconfig.FileRef
	)
	err := s.withSession(ctx, id, func(session *Session) (bool, error) {
		form := evalconfig.NewForm(session.Config)
		ref, ok := form.RemoveFile(fileID)
		if !ok {
			return false, apperrors.Wrap(apperrors.CodeNotFound, "file not found", nil)
		}
		removed = ref
		session.Config = form.Snapshot()
		out = s.view(*session)
		return true, nil
	})
	if err != nil {
		return SessionView{}, err
	}
	if err := s.storage.Delete(ctx, removed.StorageKey); err != nil {
		s.logger.Warn("delete file blob failed", "session_id", id, "key", removed.StorageKey, "error", err)
	}
	return out, nil
}

// ToggleNav flips the drawer. A positive width also records the viewport.
func (s *Service) ToggleNav(ctx context.Context, id uuid.UUID, viewportWidth int) (layout.View, error) {
	var out layout.View
	err := s.withSession(ctx, id, func(session *Session) (bool, error) {
		shell := s.shell(*session)
		if viewportWidth > 0 {
			shell.Resize(viewportWidth)
		}
		shell.ToggleNav()
		session.Nav = shell.State()
		session.ViewportWidth = shell.View().ViewportWidth
		out = shell.View()
		return true, nil
	})
	return out, err
}

// ReportViewport records the width the client is rendering at.
func (s *Service) ReportViewport(ctx context.Context, id uuid.UUID, viewportWidth int) (SessionView, error) {
	var out SessionView
	err := s.withSession(ctx, id, func(session *Session) (bool, error) {
		if viewportWidth > 0 {
			session.ViewportWidth = viewportWidth
		}
		out = s.view(*session)
		return true, nil
	})
	return out, err
}

// NarrowThreshold is the configured narrow-viewport cutoff in pixels.
func (s *Service) NarrowThreshold() int {
	return s.cfg.NarrowViewportPx
}

func (s *Service) editForm(ctx context.Context, id uuid.UUID, edit func(form *evalconfig.Form) error) (SessionView, error) {
	var out SessionView
	err := s.withSession(ctx, id, func(session *Session) (bool, error) {
		form := evalconfig.NewForm(session.Config)
		if err := edit(form); err != nil {
			if fields, ok := evalconfig.AsFieldErrors(err); ok {
				for field := range fields {
					s.metrics.FieldRejected(field)
				}
				return false, apperrors.Wrap(apperrors.CodeInvalidField, "invalid configuration", fields)
			}
			return false, err
		}
		session.Config = form.Snapshot()
		out = s.view(*session)
		return true, nil
	})
	return out, err
}

// withSession loads the session under its lock, runs fn and saves the result
// when fn asks for it. Saving also slides the TTL.
func (s *Service) withSession(ctx context.Context, id uuid.UUID, fn func(session *Session) (bool, error)) error {
	lock := s.lock(id)
	lock.Lock()
	defer lock.Unlock()
	session, found, err := s.sessions.Get(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to load session", err)
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeNotFound, "session not found", nil)
	}
	save, err := fn(&session)
	if err != nil {
		return err
	}
	if !save {
		return nil
	}
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session, s.cfg.SessionTTL); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to save session", err)
	}
	s.track(id)
	return nil
}

func (s *Service) lock(id uuid.UUID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Service) track(id uuid.UUID) {
	s.trackMu.Lock()
	s.tracked[id] = struct{}{}
	s.trackMu.Unlock()
}

func (s *Service) untrack(id uuid.UUID) bool {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	if _, ok := s.tracked[id]; !ok {
		return false
	}
	delete(s.tracked, id)
	return true
}

func (s *Service) shell(session Session) *layout.Shell {
	return layout.Restore(session.Nav, session.ViewportWidth, s.cfg.NarrowViewportPx)
}

func (s *Service) view(session Session) SessionView {
	return SessionView{
		ID:        session.ID,
		Config:    session.Config.Clone(),
		Shell:     s.shell(session).View(),
		LastRunID: session.LastRunID,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}

func (s *Service) checkUpload(up Upload) error {
	name := strings.TrimSpace(up.Filename)
	if name == "" {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "file name is required", nil)
	}
	if len(up.Data) == 0 {
		return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("%s is empty", name), nil)
	}
	if int64(len(up.Data)) > s.cfg.MaxFileBytes {
		return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("%s exceeds %d bytes", name, s.cfg.MaxFileBytes), nil)
	}
	if s.files != nil && !s.files.Supports(name, up.MimeType) {
		return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("%s: unsupported file type", name), nil)
	}
	return nil
}

func (s *Service) store(ctx context.Context, sessionID uuid.UUID, up Upload) (evalconfig.FileRef, error) {
	fileID := uuid.New()
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(up.Filename), "\\", "/"))
	key := fmt.Sprintf("%s%s/%s", sessionPrefix(sessionID), fileID, name)
	mimeType := up.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	obj, err := s.storage.Put(ctx, key, up.Data, mimeType)
	if err != nil {
		return evalconfig.FileRef{}, apperrors.Wrap(apperrors.CodeStorage, "failed to store "+name, err)
	}
	return evalconfig.FileRef{
		ID:         fileID,
		Name:       name,
		SizeBytes:  obj.Size,
		MimeType:   mimeType,
		StorageKey: obj.Key,
		UploadedAt: s.now(),
	}, nil
}

func (s *Service) discard(ctx context.Context, refs []evalconfig.FileRef) {
	for _, ref := range refs {
		if err := s.storage.Delete(ctx, ref.StorageKey); err != nil {
			s.logger.Warn("discard stored file failed", "key", ref.StorageKey, "error", err)
		}
	}
}

// cleanup cancels runs and removes everything stored for a session.
func (s *Service) cleanup(ctx context.Context, id uuid.UUID) error {
	s.inflight.cancelSession(id)
	if err := s.runs.DeleteBySession(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to delete runs", err)
	}
	if err := s.storage.DeletePrefix(ctx, sessionPrefix(id)); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "failed to delete files", err)
	}
	if s.untrack(id) {
		s.metrics.SessionClosed()
	}
	return nil
}

func sessionPrefix(id uuid.UUID) string {
	return "sessions/" + id.String() + "/"
}
