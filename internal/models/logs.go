package models

import "time"

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// MessageLogEntry is an append-only audit row for one inbound or outbound message.
type MessageLogEntry struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	Direction         string    `db:"direction" json:"direction"`
	MessageType       string    `db:"message_type" json:"message_type"`
	Body              string    `db:"body" json:"body"`
	ExternalMessageID *string   `db:"external_message_id" json:"external_message_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

type NudgeLogEntry struct {
	ID      int64     `db:"id" json:"id"`
	UserID  int64     `db:"user_id" json:"user_id"`
	Tier    string    `db:"tier" json:"tier"`
	Message string    `db:"message" json:"message"`
	SentAt  time.Time `db:"sent_at" json:"sent_at"`
}

// OutboxEntry is an outbound intent waiting for (or done with) delivery.
type OutboxEntry struct {
	ID          string     `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	Kind        string     `db:"kind" json:"kind"`
	Payload     string     `db:"payload" json:"payload"`
	Attempts    int        `db:"attempts" json:"attempts"`
	LastError   string     `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}
