package handlers

import "github.com/ledgersync/ledgersync/internal/client/engine"

// StatusResponse represents the health and sync status of the client.
type StatusResponse struct {
	Status    string         `json:"status"`          // health status ("ok").
	Timestamp string         `json:"ts"`              // timestamp when the status was taken.
	Version   string         `json:"version"`         // version of the client.
	Revision  string         `json:"revision"`        // revision of the client.
	BuildDate string         `json:"buildDate"`       // build date of the client.
	Sync      *engine.Status `json:"sync,omitempty"`  // engine status, nil when it could not be read.
	Error     string         `json:"error,omitempty"` // why Sync is missing.
}
