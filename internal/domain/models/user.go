package models

import "time"

// UserSettings is the per-user state kept by the settings store.
// Token holds the decrypted credential and is never serialized.
type UserSettings struct {
	UserID             int64     `json:"user_id"`
	Token              string    `json:"-"`
	EncryptedToken     string    `json:"encrypted_api_token,omitempty"`
	SelectedAccountIDs []string  `json:"selected_account_ids,omitempty"`
	DailySummary       bool      `json:"daily_summary"`
	PaymentReminders   bool      `json:"payment_reminders"`
	UpdatedAt          time.Time `json:"updated_at"`
}
