// Package events fans out engine notifications to SSE subscribers.
package events

import (
	"encoding/json"
	"time"
)

const (
	Ping               = "ping"
	RunStarted         = "run_started"
	RunFinished        = "run_finished"
	ApplicationCreated = "application_created"
	ApplicationUpdated = "application_updated"
	LedgerReset        = "ledger_reset"
	ConfigSaved        = "config_saved"
)

type Event struct {
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
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
