package domain

import "github.com/google/uuid"

// UserID is the stable subject handed over by the identity provider.
type UserID = string
type SessionID = uuid.UUID
