package httpapi

import (
	"net/http"
	"sync/atomic"
	"time"

	"valeads-engine/internal/config"
)

type HealthHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ok":   true,
		"time": time.Now().Format(time.RFC3339),
	}
	if cfg, ok := h.CfgVal.Load().(config.Config); ok {
		resp["backend"] = cfg.Storage.Backend
	}
	WriteJSON(w, http.StatusOK, resp)
}
