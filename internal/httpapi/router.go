package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter returns the router itself so main() can still attach /shutdown
// (needs srv+token) before wrapping it with middleware.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// Health
	hh := HealthHandler{CfgVal: d.CfgVal}
	r.HandleFunc("/health", hh.Health).Methods(http.MethodGet)

	// Upload
	uh := UploadHandler{Svc: d.Service, CfgVal: d.CfgVal}
	r.HandleFunc("/upload_csvs", uh.UploadPair).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload/{dataset}", uh.UploadOne).Methods(http.MethodPost)

	// Reconcile
	rh := ReconcileHandler{Svc: d.Service, Status: d.ReconcileStatus}
	api.HandleFunc("/reconcile", rh.Run).Methods(http.MethodPost)
	api.HandleFunc("/reconcile/status", rh.StatusGet).Methods(http.MethodGet)

	// Export
	xh := ExportHandler{Svc: d.Service}
	api.HandleFunc("/export/{name}", xh.Download).Methods(http.MethodGet)
	api.HandleFunc("/export/{name}/sheet", xh.Publish).Methods(http.MethodPost)

	// Datasets
	dh := DatasetsHandler{Svc: d.Service}
	api.HandleFunc("/datasets", dh.List).Methods(http.MethodGet)
	api.HandleFunc("/datasets", dh.DeleteAll).Methods(http.MethodDelete)
	api.HandleFunc("/datasets/{name}", dh.Get).Methods(http.MethodGet)
	api.HandleFunc("/datasets/{name}", dh.Delete).Methods(http.MethodDelete)

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	api.HandleFunc("/secrets/storage", sh.SetStoragePassword).Methods(http.MethodPost)

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	if d.Hub != nil {
		ch.Hub = d.Hub
	}
	r.HandleFunc("/config", ch.Get).Methods(http.MethodGet)
	r.HandleFunc("/config", ch.Put).Methods(http.MethodPut)
	r.HandleFunc("/config/path", ch.Path).Methods(http.MethodGet)
	r.HandleFunc("/config/validate", ch.Validate).Methods(http.MethodGet)

	// SSE events
	if d.Hub != nil {
		eh := EventsHandler{Hub: d.Hub}
		r.HandleFunc("/events", eh.ServeSSE).Methods(http.MethodGet)
	}

	if d.Checkpoint != nil {
		dbh := DBHandler{Checkpoint: d.Checkpoint}
		r.HandleFunc("/db/checkpoint", dbh.CheckpointWAL).Methods(http.MethodPost)
	}

	return r
}

// Handler wraps the router with the standard middleware stack.
func Handler(h http.Handler) http.Handler {
	return Chain(h, RequestID, Recover, AccessLog, Cors)
}
