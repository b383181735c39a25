package domain

import "time"

// End reasons recorded when a session is deactivated.
const (
	EndReasonTerminated = "terminated"
	EndReasonEvicted    = "evicted"
	EndReasonExpired    = "expired"
)

type Session struct {
	ID           SessionID   `gorm:"type:uuid;primaryKey" db:"id" json:"sessionId"`
	UserID       UserID      `gorm:"type:text;not null;index:ix_sessions_user_active,priority:1" db:"user_id" json:"userId"`
	Token        string      `gorm:"type:text;not null;uniqueIndex:ux_sessions_token" db:"token" json:"-"`
	Device       DeviceLabel `gorm:"embedded" json:"deviceInfo"`
	IPAddress    string      `gorm:"type:text;not null" db:"ip_address" json:"ipAddress"`
	IsActive     bool        `gorm:"not null;index:ix_sessions_user_active,priority:2" db:"is_active" json:"isActive"`
	CreatedAt    time.Time   `gorm:"not null" db:"created_at" json:"createdAt"`
	LastActivity time.Time   `gorm:"not null;index" db:"last_activity" json:"lastActivity"`
	EndedAt      *time.Time  `db:"ended_at" json:"endedAt,omitempty"`
	EndReason    string      `gorm:"type:text" db:"end_reason" json:"endReason,omitempty"`
}

func (Session) TableName() string { return "sessions" }
