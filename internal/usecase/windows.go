package usecase

import "time"

const (
	// An admin signal may be materialized from AdmitBefore ahead of its
	// scheduled time until AdmitAfter past it.
	AdmitBefore = 90 * time.Second
	AdmitAfter  = 60 * time.Second

	// Pending admin signals are looked up in [now-LookaheadBefore, now+LookaheadAfter].
	LookaheadBefore = 60 * time.Second
	LookaheadAfter  = 180 * time.Second

	AdminPollInterval = 2 * time.Second
	ExitMargin        = 3 * time.Second
	TickInterval      = 5 * time.Second
	WatchdogInterval  = 2 * time.Second
	WatchdogMargin    = 2 * time.Second

	MinConfidence      = 70.0
	MaxSearchAttempts  = 24
	MaxAnalysisRetries = 3
	AdminConfidence    = 99.0
	AdminStrategy      = "admin"
)

// Eligibility classifies an admin signal against the execution window.
type Eligibility int

const (
	Executable Eligibility = iota
	Future
	Stale
)

func (e Eligibility) String() string {
	switch e {
	case Executable:
		return "executable"
	case Future:
		return "future"
	default:
		return "stale"
	}
}

// Windows holds the admission and lookahead bands.
type Windows struct {
	AdmitBefore     time.Duration
	AdmitAfter      time.Duration
	LookaheadBefore time.Duration
	LookaheadAfter  time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		AdmitBefore:     AdmitBefore,
		AdmitAfter:      AdmitAfter,
		LookaheadBefore: LookaheadBefore,
		LookaheadAfter:  LookaheadAfter,
	}
}

// Classify applies diff = scheduled - now: executable when
// diff <= AdmitBefore and diff > -AdmitAfter, stale at or past -AdmitAfter.
func (w Windows) Classify(scheduled, now time.Time) Eligibility {
	diff := scheduled.Sub(now)
	switch {
	case diff <= -w.AdmitAfter:
		return Stale
	case diff <= w.AdmitBefore:
		return Executable
	default:
		return Future
	}
}

// Lookahead returns the query band for pending admin signals.
func (w Windows) Lookahead(now time.Time) (from, to time.Time) {
	return now.Add(-w.LookaheadBefore), now.Add(w.LookaheadAfter)
}

// EligibleAt is the first instant Classify reports Executable.
func (w Windows) EligibleAt(scheduled time.Time) time.Time {
	return scheduled.Add(-w.AdmitBefore)
}

// StaleBefore is the latest scheduled time that is already stale at now.
func (w Windows) StaleBefore(now time.Time) time.Time {
	return now.Add(-w.AdmitAfter)
}
