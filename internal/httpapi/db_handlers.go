package httpapi

import (
	"context"
	"net"
	"net/http"
)

type DBHandler struct {
	Checkpoint func(ctx context.Context) error
}

func isLocal(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}

// CheckpointWAL folds the sqlite write-ahead log into the main file, e.g.
// before the data dir is copied.
func (h DBHandler) CheckpointWAL(w http.ResponseWriter, r *http.Request) {
	if !isLocal(r) {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}
	if err := h.Checkpoint(r.Context()); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
