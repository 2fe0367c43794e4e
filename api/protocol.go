package api

import "github.com/technicalkuldeep/blood-dapp/domain"

const webhookMaxSize = 64 * 1024 // 64 KiB

// defaultReplayCount is how much history a new stream subscriber gets as
// catch-up when no count is configured.
const defaultReplayCount = 10

// POST /api/events response body
type ackResponse struct {
	OK          bool   `json:"ok"`
	DeliveredTo int    `json:"deliveredTo,omitempty"`
	Error       string `json:"error,omitempty"`
}

// GET /api/events response body
type historyResponse struct {
	OK     bool           `json:"ok"`
	Events []domain.Event `json:"events"`
}

// GET /api/config response body
type configResponse struct {
	OK     bool        `json:"ok"`
	Config ChainConfig `json:"config"`
}

// POST /api/debug/events response body
type debugResponse struct {
	OK            bool        `json:"ok"`
	ConfigPresent ChainConfig `json:"config_present"`
	Received      any         `json:"received"`
}
