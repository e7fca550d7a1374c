package main

import (
	"riposte/server/internal/logging"
	"riposte/server/internal/sim"
)

// clientMessage is the single envelope clients send over the socket.
// The type field selects which of the remaining fields matter.
type clientMessage struct {
	Type   string  `json:"type"`
	DX     float64 `json:"dx,omitempty"`
	DY     float64 `json:"dy,omitempty"`
	Action string  `json:"action,omitempty"` // start | execute | cancel
	Skill  string  `json:"skill,omitempty"`
	Target string  `json:"target,omitempty"`
	SentAt int64   `json:"sentAt,omitempty"`
}

type joinRequest struct {
	Faction string `json:"faction,omitempty"`
	Weapon  string `json:"weapon,omitempty"`
}

type joinResponse struct {
	ID    string       `json:"id"`
	State sim.Snapshot `json:"state"`
}

type stateMessage struct {
	Type string `json:"type"`
	sim.Snapshot
}

type eventMessage struct {
	Type  string        `json:"type"`
	Event logging.Event `json:"event"`
}

type heartbeatMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

type errorMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
