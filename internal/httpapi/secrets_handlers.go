package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"valeads-engine/internal/config"
	"valeads-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setStoragePasswordReq struct {
	Password string `json:"password"`
}

// SetStoragePassword stores the postgres password in the OS keyring. It takes
// effect on the next start.
func (h SecretsHandler) SetStoragePassword(w http.ResponseWriter, r *http.Request) {
	var req setStoragePasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetStoragePassword(secrets.StorageKeyringAccount(cfg), req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_error", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
