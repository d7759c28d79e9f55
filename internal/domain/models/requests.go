package models

import "time"

// Request payloads for the HTTP API.

type ListSignalsRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type SignalIDRequest struct {
	ID string `param:"id" json:"id" validate:"required"`
}

type SetMarketRequest struct {
	Pair      string `json:"pair" validate:"required"`
	Timeframe int    `json:"timeframe" default:"1" validate:"oneof=1 5 15 30 60"`
	Strategy  string `json:"strategy"`
}

type StartAutomationRequest struct {
	Pair      string `json:"pair"`
	Timeframe int    `json:"timeframe" validate:"omitempty,oneof=1 5 15 30 60"`
	Strategy  string `json:"strategy"`
}

type CreateAdminSignalRequest struct {
	Pair          string    `json:"pair" validate:"required"`
	Direction     string    `json:"direction" validate:"required,oneof=buy sell BUY SELL"`
	ScheduledTime time.Time `json:"scheduledTime" validate:"required"`
	Timeframe     int       `json:"timeframe" default:"1" validate:"oneof=1 5 15 30 60"`
}

type ListAdminSignalsRequest struct {
	Status string `query:"status" json:"status" validate:"omitempty,oneof=pending executed expired"`
	Pair   string `query:"pair" json:"pair"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type SetSystemRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}
