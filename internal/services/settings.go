package services

import "time"

// Settings holds the timing knobs shared by the lifecycle services.
type Settings struct {
	ContextTimeout time.Duration

	// Replacement invitations get min(now+ReplacementWindow, eventStart),
	// but never less than now+ReplacementMinWindow.
	ReplacementWindow    time.Duration
	ReplacementMinWindow time.Duration

	// The sorry notice fires within SorryTolerance of eventStart-SorryLead.
	SorryLead      time.Duration
	SorryTolerance time.Duration

	DedupWindow time.Duration

	ScanInterval time.Duration
	// Feed-triggered deadline processing skips deadlines older than
	// RecentDeadline during the first StartupGrace after start.
	StartupGrace   time.Duration
	RecentDeadline time.Duration

	DispatchInterval time.Duration
	DispatchBatch    int
	DispatchLease    time.Duration

	DefaultLocale string
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		ContextTimeout:       10 * time.Second,
		ReplacementWindow:    7 * 24 * time.Hour,
		ReplacementMinWindow: 48 * time.Hour,
		SorryLead:            time.Minute,
		SorryTolerance:       30 * time.Second,
		DedupWindow:          5 * time.Minute,
		ScanInterval:         15 * time.Second,
		StartupGrace:         30 * time.Second,
		RecentDeadline:       2 * time.Minute,
		DispatchInterval:     5 * time.Second,
		DispatchBatch:        50,
		DispatchLease:        5 * time.Minute,
		DefaultLocale:        "en",
	}
}

// replacementDeadline is the response deadline for an invitation issued at now.
func (s Settings) replacementDeadline(now, eventStart time.Time) time.Time {
	d := now.Add(s.ReplacementWindow)
	if !eventStart.IsZero() && eventStart.Before(d) {
		d = eventStart
	}
	if floor := now.Add(s.ReplacementMinWindow); d.Before(floor) {
		d = floor
	}
	return d
}

const deadlineLayout = "Jan 2, 2006 15:04 MST"

func formatDeadline(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(deadlineLayout)
}
