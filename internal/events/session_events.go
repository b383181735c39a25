package events

import "time"

type SessionCreated struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Browser   string    `json:"browser"`
	IPAddress string    `json:"ipAddress"`
	At        time.Time `json:"at"`
}

// SessionEvicted is emitted when a session is ended to make room for a new one.
type SessionEvicted struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	ReplacedByID string    `json:"replacedById"`
	At           time.Time `json:"at"`
}

type SessionTerminated struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	At        time.Time `json:"at"`
}

type SessionsExpired struct {
	UserID string    `json:"userId,omitempty"`
	Count  int       `json:"count"`
	Cutoff time.Time `json:"cutoff"`
	At     time.Time `json:"at"`
}

type DeviceLimitReached struct {
	UserID     string    `json:"userId"`
	Active     int       `json:"active"`
	MaxDevices int       `json:"maxDevices"`
	At         time.Time `json:"at"`
}
