package handlers

import (
	"encoding/json"

	"github.com/ledgersync/ledgersync/internal/client/syncstore"
)

// MutationRequest writes one entity document. Op defaults to update.
type MutationRequest struct {
	Op   syncstore.Op    `json:"op"`
	Data json.RawMessage `json:"data" binding:"required"`
}

type MutationResponse struct {
	EventID string `json:"eventId"`
}

type EntityItem struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt string          `json:"updatedAt"`
}

type EntityListResponse struct {
	Entity string       `json:"entity"`
	Items  []EntityItem `json:"items"`
}
