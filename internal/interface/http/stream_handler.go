package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StreamRun pushes run events as Server-Sent Events until the run finishes
// or the client disconnects.
func (h *Handler) StreamRun(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	runID, ok := uuidParam(c, "runId")
	if !ok {
		return
	}
	events, err := h.svc.Subscribe(c.Request.Context(), id, runID)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("marshal run event failed", "run_id", runID, "error", err)
			continue
		}
		c.Writer.Write([]byte("event: " + string(ev.Type) + "\n"))
		c.Writer.Write([]byte("data: "))
		c.Writer.Write(payload)
		c.Writer.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
