package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"valeads-engine/internal/export"
	"valeads-engine/internal/pipeline"
)

type ExportHandler struct {
	Svc *pipeline.Service
}

// Download streams the named export as a CSV attachment.
func (h ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	sheet, filename, err := h.Svc.Export(r.Context(), name)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	// render first so a write error can still become a JSON response
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, sheet); err != nil {
		WriteServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Publish writes the named export to its configured sheet range.
func (h ExportHandler) Publish(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	rows, err := h.Svc.PublishSheet(r.Context(), name)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "export": name, "rows": rows})
}
