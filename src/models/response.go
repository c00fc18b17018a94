package models

// -----------------------------------------------------------------------------
// MResponse is the envelope written for every protocol command.
// Data is omitted on the paths that carry nothing besides the message.
// -----------------------------------------------------------------------------

type MResponse struct {
	Ok      bool                   `json:"ok"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
