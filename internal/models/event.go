package models

import (
	"encoding/json"
	"time"
)

// Event type constants
const (
	EventTypeHoldingsSnapshot = "HOLDINGS_SNAPSHOT"
	EventTypeHoldingsLoaded   = "HOLDINGS_LOADED"
)

// HoldingsEvent is a full holdings snapshot pushed by an upstream broker feed
type HoldingsEvent struct {
	EventType string            `json:"event_type"`
	Source    string            `json:"source"`
	Timestamp string            `json:"timestamp"`
	Data      HoldingsEventData `json:"data"`
}

// HoldingsEventData carries the raw holding records; each is decoded on its own
type HoldingsEventData struct {
	Holdings []json.RawMessage `json:"holdings"`
}

// LoadEvent is published after a load sequence settles
type LoadEvent struct {
	EventType     string    `json:"event_type"`
	Outcome       string    `json:"outcome"`
	HoldingsCount int       `json:"holdings_count"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
