package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-bin-backend/internal/ingest"
)

// maxIngestBody caps device payloads; a full reading is a few hundred bytes.
const maxIngestBody = 64 << 10

// Ingest adapts the device endpoint onto ingest.Service.
func (h *Handler) Ingest(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBody))
		if err != nil {
			c.String(http.StatusBadRequest, ingest.MsgNoJSON)
			return
		}
	}

	resp := h.ingest.Handle(c.Request.Context(), ingest.Request{
		Method: c.Request.Method,
		Body:   body,
	})
	for k, v := range resp.Header {
		c.Header(k, v)
	}
	if resp.Body == "" {
		c.Status(resp.StatusCode)
		return
	}
	c.Data(resp.StatusCode, resp.Header["Content-Type"], []byte(resp.Body))
}
