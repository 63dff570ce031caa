package protocol

import (
	"encoding/json"
	"fmt"
)

// Payload is the status-bar JSON shape rendered for every brightness reply.
type Payload struct {
	Text       string `json:"text"`
	Percentage int    `json:"percentage"`
	Tooltip    string `json:"tooltip"`
}

// FormatResult renders a brightness operation outcome as a one-line JSON
// payload. Failures render a placeholder value instead of crashing the
// status-bar client.
func FormatResult(value int, err error) string {
	var payload Payload
	if err != nil {
		payload = Payload{
			Text:       "?",
			Percentage: 0,
			Tooltip:    fmt.Sprintf("Error: %v", err),
		}
	} else {
		payload = Payload{
			Text:       fmt.Sprintf("%d", value),
			Percentage: value,
			Tooltip:    fmt.Sprintf("Brightness: %d%%", value),
		}
	}

	encoded, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return `{"text":"?","percentage":0,"tooltip":"Error: encode payload"}`
	}
	return string(encoded)
}
