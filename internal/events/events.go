package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published on the hub.
const (
	TypePing            = "ping"
	TypeUploadDone      = "upload_done"
	TypeListingsDone    = "listings_done"
	TypeReconcileDone   = "reconcile_done"
	TypeDatasetDeleted  = "dataset_deleted"
	TypeExportPublished = "export_published"
	TypeConfigReloaded  = "config_reloaded"
)

type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
