package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"valeads-engine/internal/pipeline"
)

type DatasetsHandler struct {
	Svc *pipeline.Service
}

func (h DatasetsHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Datasets(r.Context())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h DatasetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Svc.Dataset(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, raw)
}

func (h DatasetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.Svc.DeleteDataset(r.Context(), name); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "dataset": name})
}

func (h DatasetsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteAll(r.Context()); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
