package model

import "time"

// Notification channel constants
const (
	ChannelCancellation = "cancellation"
	ChannelReminder     = "cooking_reminder"
)

type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	District  string    `json:"district"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}
