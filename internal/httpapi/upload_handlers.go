package httpapi

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gorilla/mux"

	"valeads-engine/internal/config"
	"valeads-engine/internal/pipeline"
)

const maxUploadBytes = 64 << 20

const (
	msgBothRequired = "Both CSV files are required."
	msgNotCSV       = "Files must be in CSV format."
)

type UploadHandler struct {
	Svc    *pipeline.Service
	CfgVal *atomic.Value // stores config.Config
}

func isCSV(h *multipart.FileHeader) bool {
	return strings.EqualFold(filepath.Ext(h.Filename), ".csv")
}

// formFiles opens the named multipart fields. ok is false when any is absent;
// the caller must close whatever was opened.
func formFiles(r *http.Request, fields ...string) (files []multipart.File, headers []*multipart.FileHeader, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, false
	}
	for _, name := range fields {
		f, h, err := r.FormFile(name)
		if err != nil {
			return files, headers, false
		}
		files = append(files, f)
		headers = append(headers, h)
	}
	return files, headers, true
}

func closeAll(r *http.Request, files []multipart.File) {
	for _, f := range files {
		_ = f.Close()
	}
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// UploadPair accepts the general (csv1) and filtered (csv2) transaction
// exports in one request.
func (h UploadHandler) UploadPair(w http.ResponseWriter, r *http.Request) {
	files, headers, ok := formFiles(r, "csv1", "csv2")
	defer closeAll(r, files)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "validation_error", msgBothRequired)
		return
	}
	for _, fh := range headers {
		if !isCSV(fh) {
			WriteError(w, r, http.StatusBadRequest, "validation_error", msgNotCSV)
			return
		}
	}

	cfg := h.CfgVal.Load().(config.Config)
	rep, err := h.Svc.IngestTransactions(r.Context(),
		pipeline.Upload{Dataset: cfg.Upload.General, Body: files[0]},
		pipeline.Upload{Dataset: cfg.Upload.Filtered, Body: files[1]},
	)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, rep)
}

// UploadOne ingests a single file into the dataset named in the path.
func (h UploadHandler) UploadOne(w http.ResponseWriter, r *http.Request) {
	dataset := mux.Vars(r)["dataset"]

	files, headers, ok := formFiles(r, "file")
	defer closeAll(r, files)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "A CSV file is required.")
		return
	}
	if !isCSV(headers[0]) {
		WriteError(w, r, http.StatusBadRequest, "validation_error", msgNotCSV)
		return
	}

	rep, err := h.Svc.Ingest(r.Context(), dataset, files[0])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, rep)
}
