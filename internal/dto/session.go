package dto

import "time"

type CreateSessionRequest struct {
	ForceSessionID *string `json:"forceSessionId,omitempty"`
}

type ForceSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type DeviceInfo struct {
	Browser         string `json:"browser"`
	OperatingSystem string `json:"operatingSystem"`
	DeviceType      string `json:"deviceType"`
}

type SessionView struct {
	SessionID    string     `json:"sessionId"`
	DeviceInfo   DeviceInfo `json:"deviceInfo"`
	IPAddress    string     `json:"ipAddress"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
	IsCurrent    bool       `json:"isCurrent"`
}

type CreateSessionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

type LimitExceededResponse struct {
	Status          string        `json:"status"`
	Message         string        `json:"message"`
	CurrentSessions []SessionView `json:"currentSessions"`
	MaxDevices      int           `json:"maxDevices"`
}

type ListSessionsResponse struct {
	Sessions   []SessionView `json:"sessions"`
	MaxDevices int           `json:"maxDevices"`
}

type ValidateSessionResponse struct {
	Valid     bool   `json:"valid"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
