package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"valeads-engine/internal/pipeline"
)

type ReconcileHandler struct {
	Svc    *pipeline.Service
	Status *atomic.Value // stores httpapi.RunStatus
}

// RunTracked reconciles and records the outcome in status. The scheduler
// goes through here too so /api/reconcile/status covers both.
func RunTracked(ctx context.Context, svc *pipeline.Service, status *atomic.Value) (*pipeline.Report, error) {
	st, _ := status.Load().(RunStatus)
	st.Running = true
	st.LastRunAt = time.Now().Format(time.RFC3339)
	status.Store(st)

	rep, err := svc.Reconcile(ctx)

	now := time.Now().Format(time.RFC3339)
	next, _ := status.Load().(RunStatus)
	next.Running = false
	next.LastRunAt = now
	if err != nil {
		next.LastError = err.Error()
	} else {
		next.LastError = ""
		next.LastOkAt = now
		if rep.Matched != nil {
			next.LastMatched = *rep.Matched
		}
	}
	status.Store(next)
	return rep, err
}

func (h ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	rep, err := RunTracked(r.Context(), h.Svc, h.Status)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, rep)
}

func (h ReconcileHandler) StatusGet(w http.ResponseWriter, r *http.Request) {
	st, _ := h.Status.Load().(RunStatus)
	WriteJSON(w, http.StatusOK, st)
}
