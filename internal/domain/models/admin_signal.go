package models

import (
	"strings"
	"time"

	"SignalDesk/pkg/util"
)

type AdminStatus string

const (
	AdminPending  AdminStatus = "pending"
	AdminExecuted AdminStatus = "executed"
	AdminExpired  AdminStatus = "expired"
)

// AdminSignal is an operator-scheduled call. Status only moves forward from
// pending.
type AdminSignal struct {
	ID            string      `json:"id"`
	Pair          string      `json:"pair"`
	Direction     Direction   `json:"direction"`
	ScheduledTime time.Time   `json:"scheduledTime"`
	Timeframe     int         `json:"timeframe"`
	Status        AdminStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func (a *AdminSignal) IsPending() bool { return a.Status == AdminPending }

// AdminSignalFilter narrows admin signal queries. Zero values do not filter.
type AdminSignalFilter struct {
	Status AdminStatus
	From   time.Time
	To     time.Time
	Pair   string
	Limit  int
}

// AdminSignalRow is the snake_case shape admin signals take on push
// channels: a database change feed record or a console message.
type AdminSignalRow struct {
	ID            string `json:"id"`
	Pair          string `json:"pair"`
	Direction     string `json:"direction"`
	Type          string `json:"type"` // legacy name of direction
	ScheduledTime string `json:"scheduled_time"`
	Timeframe     int    `json:"timeframe"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// ToAdminSignal converts the row. ok is false when a required field is
// missing or malformed.
func (r AdminSignalRow) ToAdminSignal() (*AdminSignal, bool) {
	dir, ok := ParseDirection(util.FirstNonEmpty(r.Direction, r.Type))
	if !ok || r.ID == "" || r.Pair == "" {
		return nil, false
	}
	scheduled, ok := util.ParseTime(r.ScheduledTime)
	if !ok {
		return nil, false
	}
	status := AdminStatus(strings.ToLower(r.Status))
	if status == "" {
		status = AdminPending
	}
	tf := r.Timeframe
	if tf <= 0 {
		tf = 1
	}
	a := &AdminSignal{
		ID:            r.ID,
		Pair:          r.Pair,
		Direction:     dir,
		ScheduledTime: scheduled,
		Timeframe:     tf,
		Status:        status,
		CreatedAt:     util.ParseTimeDefault(r.CreatedAt, time.Time{}),
	}
	return a, true
}
