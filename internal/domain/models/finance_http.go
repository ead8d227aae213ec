package models

// Requests for the finance HTTP endpoints.

type UserRequest struct {
	UserID int64 `query:"user_id" json:"user_id" validate:"gte=0"`
}

type PeriodRequest struct {
	UserID int64  `query:"user_id" json:"user_id" validate:"gte=0"`
	Period string `query:"period" json:"period" default:"week"`
}

type SetTokenRequest struct {
	UserID int64  `json:"user_id" validate:"gt=0"`
	Token  string `json:"token" validate:"required,min=10"`
}

type SetAccountsRequest struct {
	UserID     int64    `json:"user_id" validate:"gt=0"`
	AccountIDs []string `json:"account_ids" validate:"required,min=1,max=20,dive,required"`
}

type SubscriptionRequest struct {
	UserID       int64 `json:"user_id" validate:"gt=0"`
	DailySummary bool  `json:"daily_summary"`
	Payments     bool  `json:"payments"`
}
