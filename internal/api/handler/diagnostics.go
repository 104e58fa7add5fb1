package handler

import (
	"context"
	"net/http"

	"github.com/errsink/errsink/internal/api/response"
	"github.com/errsink/errsink/internal/store"
)

// SchemaManager exposes the self-healing schema surface.
type SchemaManager interface {
	EnsureSchema(ctx context.Context) *store.SchemaReport
	TableStatus(ctx context.Context) ([]store.TableInfo, error)
	LastSchemaReport() *store.SchemaReport
}

// NewDiagnosticsHandler returns the handler for GET /api/v1/diagnostics.
// A missing table triggers a repair attempt before reporting, so an
// operator recovers from a dropped table without a restart.
func NewDiagnosticsHandler(s SchemaManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tables, err := s.TableStatus(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to inspect table status", nil)
			return
		}

		report := s.LastSchemaReport()
		if anyMissing(tables) || r.URL.Query().Get("repair") == "true" {
			report = s.EnsureSchema(r.Context())
			if tables, err = s.TableStatus(r.Context()); err != nil {
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to inspect table status", nil)
				return
			}
		}

		response.JSON(w, map[string]any{
			"tables":        tables,
			"schema_report": report,
		})
	}
}

func anyMissing(tables []store.TableInfo) bool {
	for _, t := range tables {
		if !t.Exists {
			return true
		}
	}
	return false
}
