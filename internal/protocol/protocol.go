// Package protocol holds the JSON shapes shared by the REST API, the push channel and the CLI client.
package protocol

import (
	"encoding/json"

	"timer-tracker/internal/domain"
)

// Push message types.
const (
	TypeAuth         = "auth"
	TypeAllTimers    = "all_timers"
	TypeActiveTimers = "active_timers"
)

// Timer is the wire representation of a timer. Times and durations are epoch milliseconds.
type Timer struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Start       int64  `json:"start"`
	IsActive    bool   `json:"isActive"`
	End         *int64 `json:"end,omitempty"`
	Duration    *int64 `json:"duration,omitempty"`
	Progress    *int64 `json:"progress,omitempty"`
}

// ClientMessage is sent by clients over the push channel.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
}

// ServerMessage is a snapshot pushed to clients.
type ServerMessage struct {
	Type    string  `json:"type"`
	Payload []Timer `json:"payload"`
}

// RawServerMessage lets readers inspect the type before decoding the payload.
type RawServerMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func FromView(v domain.TimerView) Timer {
	t := Timer{
		ID:          v.ID,
		Description: v.Description,
		Start:       v.Start.UnixMilli(),
		IsActive:    v.Active,
	}
	if v.End != nil {
		end := v.End.UnixMilli()
		t.End = &end
		// end and start are both millisecond-truncated, so this is exactly end-start
		d := end - t.Start
		t.Duration = &d
	}
	if v.Progress != nil {
		p := v.Progress.Milliseconds()
		t.Progress = &p
	}
	return t
}

func FromViews(views []domain.TimerView) []Timer {
	out := make([]Timer, len(views))
	for i := range views {
		out[i] = FromView(views[i])
	}
	return out
}

// Snapshot builds a push message of the given type.
func Snapshot(kind string, views []domain.TimerView) ServerMessage {
	return ServerMessage{Type: kind, Payload: FromViews(views)}
}

// Error is the body of every failed REST response.
type Error struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Credentials is the signup/login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is returned by signup and login.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CreateTimerRequest is the body of POST /api/timers.
type CreateTimerRequest struct {
	Description string `json:"description"`
}

// User is the public view of an account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// ExportResponse describes an uploaded timer export.
type ExportResponse struct {
	Location string `json:"location"`
	URL      string `json:"url,omitempty"`
}

// ExportObject is one previously uploaded export.
type ExportObject struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}
