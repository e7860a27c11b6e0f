package httpapi

type RunStatus struct {
	LastRunAt   string `json:"last_run_at"`
	LastOkAt    string `json:"last_ok_at"`
	LastError   string `json:"last_error"`
	LastMatched int    `json:"last_matched"`
	Running     bool   `json:"running"`
}
