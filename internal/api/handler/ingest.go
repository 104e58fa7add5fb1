package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	mw "github.com/errsink/errsink/internal/api/middleware"
	"github.com/errsink/errsink/internal/api/response"
	"github.com/errsink/errsink/internal/ingest"
)

// Submitter runs one raw submission through the ingestion pipeline.
type Submitter interface {
	Ingest(ctx context.Context, reqCtx ingest.RequestContext, raw []byte) (*ingest.Outcome, error)
}

// NewIngestHandler returns the handler for POST /api/v1/errors.
func NewIngestHandler(svc Submitter, maxPayloadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			response.Error(w, http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE", "Request body exceeds the payload limit", nil)
			return
		}

		reqCtx := ingest.RequestContext{
			ClientIP:  mw.GetClientIP(r),
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
		}
		if id, ok := mw.GetUserID(r); ok {
			reqCtx.UserID = &id
		}
		if reqCtx.ClientIP == "" {
			reqCtx.ClientIP = ingest.ClientIP(r)
		}

		out, err := svc.Ingest(r.Context(), reqCtx, raw)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrPayloadTooLarge):
				response.Error(w, http.StatusRequestEntityTooLarge,
					"PAYLOAD_TOO_LARGE", "Error payload exceeds the size limit", nil)
			case errors.Is(err, ingest.ErrValidation):
				response.Error(w, http.StatusBadRequest,
					"INVALID_REQUEST", err.Error(), nil)
			case errors.Is(err, ingest.ErrStorage):
				// Storage failures surface the driver message, never a stack.
				response.Error(w, http.StatusInternalServerError,
					"STORAGE_ERROR", err.Error(), nil)
			default:
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to log error", nil)
			}
			return
		}

		// Rate-limited submissions report success so abusive clients do not
		// retry; ignored ones are acknowledged without an id.
		switch {
		case out.Ignored:
			response.JSON(w, map[string]any{"ignored": true})
		case out.RateLimited:
			response.JSON(w, map[string]any{"logged": true})
		default:
			response.Created(w, map[string]any{"logged": true, "id": out.Record.ID})
		}
	}
}
