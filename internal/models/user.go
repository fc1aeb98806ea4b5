package models

import "time"

const (
	ChannelTelegram = "telegram"
	ChannelWhatsApp = "whatsapp"
	ChannelWebhook  = "webhook"
)

type User struct {
	ID           int64      `db:"id" json:"id"`
	Channel      string     `db:"channel" json:"channel"`
	ExternalID   string     `db:"external_id" json:"external_id"`
	Name         string     `db:"name" json:"name"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastActiveAt *time.Time `db:"last_active_at" json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// LastSeen is the reference point for inactivity: last inbound message,
// or registration when the user never wrote.
func (u User) LastSeen() time.Time {
	if u.LastActiveAt != nil {
		return *u.LastActiveAt
	}
	return u.CreatedAt
}
