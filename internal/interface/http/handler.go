package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/layout"
	"github.com/yanqian/evaluator-ai/internal/domain/playground"
	"github.com/yanqian/evaluator-ai/internal/domain/prompt"
)

// PlaygroundService is the domain surface the HTTP layer drives.
type PlaygroundService interface {
	TokenValidator
	CreateSession(ctx context.Context) (playground.SessionView, string, error)
	GetSession(ctx context.Context, id uuid.UUID) (playground.SessionView, error)
	EndSession(ctx context.Context, id uuid.UUID) error
	UpdateConfig(ctx context.Context, id uuid.UUID, field string, value any) (playground.SessionView, error)
	ApplyConfig(ctx context.Context, id uuid.UUID, values map[string]any) (playground.SessionView, error)
	ResetConfig(ctx context.Context, id uuid.UUID) (playground.SessionView, error)
	UploadFiles(ctx context.Context, id uuid.UUID, uploads []playground.Upload) (playground.SessionView, error)
	RemoveFile(ctx context.Context, id, fileID uuid.UUID) (playground.SessionView, error)
	ToggleNav(ctx context.Context, id uuid.UUID, viewportWidth int) (layout.View, error)
	ReportViewport(ctx context.Context, id uuid.UUID, viewportWidth int) (playground.SessionView, error)
	NarrowThreshold() int
	Submit(ctx context.Context, id uuid.UUID, req playground.SubmitRequest) (playground.Run, error)
	GetRun(ctx context.Context, sessionID, runID uuid.UUID) (playground.Run, error)
	ListRuns(ctx context.Context, sessionID uuid.UUID) ([]playground.Run, error)
	CancelRun(ctx context.Context, sessionID, runID uuid.UUID) (playground.Run, error)
	Subscribe(ctx context.Context, sessionID, runID uuid.UUID) (<-chan playground.RunEvent, error)
}

// Handler wires the HTTP transport to the playground service.
type Handler struct {
	svc    PlaygroundService
	logger *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(svc PlaygroundService, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With("component", "http.handler"),
	}
}

// ConfigDefaults returns the configuration a new session starts with.
func (h *Handler) ConfigDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, evalconfig.Defaults())
}

// ConfigOptions lists every field with its allowed values.
func (h *Handler) ConfigOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fields": evalconfig.Options()})
}

// GradingPrompt renders the template text for a style, language and kind.
func (h *Handler) GradingPrompt(c *gin.Context) {
	style, err := prompt.ParseStyle(c.Query("style"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	lang := evalconfig.Language(c.DefaultQuery("language", string(evalconfig.Defaults().Language)))
	if !lang.Valid() {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", fmt.Sprintf("unsupported language %q", lang), nil))
		return
	}
	tmpl, err := prompt.Lookup(prompt.Kind(c.Query("kind")), style, lang)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"style": style, "language": lang, "template": tmpl})
}

// CreateSession mounts a new playground and returns its bearer token.
func (h *Handler) CreateSession(c *gin.Context) {
	view, token, err := h.svc.CreateSession(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": view, "token": token})
}

// GetSession returns the session view.
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// EndSession unmounts the playground.
func (h *Handler) EndSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.svc.EndSession(c.Request.Context(), id); err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

type configPatch struct {
	Field  string         `json:"field"`
	Value  any            `json:"value"`
	Fields map[string]any `json:"fields"`
}

// PatchConfig edits one field or a set of fields atomically.
func (h *Handler) PatchConfig(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req configPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	var (
		view playground.SessionView
		err  error
	)
	switch {
	case len(req.Fields) > 0 && req.Field != "":
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "use either field or fields, not both", nil))
		return
	case len(req.Fields) > 0:
		view, err = h.svc.ApplyConfig(c.Request.Context(), id, req.Fields)
	case req.Field != "":
		view, err = h.svc.UpdateConfig(c.Request.Context(), id, req.Field, req.Value)
	default:
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "field or fields is required", nil))
		return
	}
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// ResetConfig restores default values; uploaded files are kept.
func (h *Handler) ResetConfig(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.svc.ResetConfig(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// UploadFiles accepts a multipart form with one or more "files" parts.
func (h *Handler) UploadFiles(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "multipart form with files is required", err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "at least one file is required", nil))
		return
	}
	uploads := make([]playground.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := readUpload(fh)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "failed to read upload", err))
			return
		}
		uploads = append(uploads, upload)
	}
	view, err := h.svc.UploadFiles(c.Request.Context(), id, uploads)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

func readUpload(fh *multipart.FileHeader) (playground.Upload, error) {
	file, err := fh.Open()
	if err != nil {
		return playground.Upload{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return playground.Upload{}, err
	}
	return playground.Upload{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// RemoveFile drops one uploaded file.
func (h *Handler) RemoveFile(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	fileID, ok := uuidParam(c, "fileId")
	if !ok {
		return
	}
	view, err := h.svc.RemoveFile(c.Request.Context(), id, fileID)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleNav flips the navigation drawer.
func (h *Handler) ToggleNav(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	view, err := h.svc.ToggleNav(c.Request.Context(), id, viewportWidth(c))
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

type viewportReport struct {
	Width int `json:"width"`
}

// ReportViewport records the client's viewport width.
func (h *Handler) ReportViewport(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req viewportReport
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if req.Width <= 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "width must be positive", nil))
		return
	}
	view, err := h.svc.ReportViewport(c.Request.Context(), id, req.Width)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitRun queues an evaluation of the current configuration.
func (h *Handler) SubmitRun(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req playground.SubmitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
			return
		}
	}
	run, err := h.svc.Submit(c.Request.Context(), id, req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// ListRuns returns the session's runs, newest first.
func (h *Handler) ListRuns(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	runs, err := h.svc.ListRuns(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one run with the results recorded so far.
func (h *Handler) GetRun(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "runId")
	if !ok {
		return
	}
	run, err := h.svc.GetRun(c.Request.Context(), id, runID)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, run)
}

// CancelRun stops a pending or running evaluation.
func (h *Handler) CancelRun(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "runId")
	if !ok {
		return
	}
	run, err := h.svc.CancelRun(c.Request.Context(), id, runID)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, run)
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", fmt.Sprintf("%s must be a uuid", name), err))
		return uuid.Nil, false
	}
	return id, true
}

// viewportWidth reads ?vw=; anything unparsable counts as unknown.
func viewportWidth(c *gin.Context) int {
	vw, err := strconv.Atoi(c.Query("vw"))
	if err != nil || vw < 0 {
		return 0
	}
	return vw
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
