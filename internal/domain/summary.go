package domain

import "time"

// QuietTime is a daily window during which periodic summaries are suppressed.
// Times are "HH:MM" in 24h local time; the window may wrap midnight.
type QuietTime struct {
	Start string `bson:"start" json:"start"`
	End   string `bson:"end" json:"end"`
}

// Contains reports whether the clock time of now falls inside the window.
func (q QuietTime) Contains(now time.Time) bool {
	start, errStart := time.Parse("15:04", q.Start)
	end, errEnd := time.Parse("15:04", q.End)
	if errStart != nil || errEnd != nil {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin <= endMin {
		return minute >= startMin && minute < endMin
	}
	// Window wraps midnight, e.g. 22:00 to 07:00.
	return minute >= startMin || minute < endMin
}

// GroupSummary is the periodic-summary configuration for one group, the
// artifact the configuration wizard produces.
type GroupSummary struct {
	Enabled       bool      `bson:"enabled" json:"enabled"`
	IntervalHours int       `bson:"interval_hours" json:"interval_hours"`
	QuietTime     QuietTime `bson:"quiet_time" json:"quiet_time"`
	// DeleteAfter is the auto-deletion delay in minutes for sent summaries;
	// nil means summaries are kept.
	DeleteAfter *int   `bson:"delete_after,omitempty" json:"delete_after,omitempty"`
	Prompt      string `bson:"prompt" json:"prompt"`
}

// DefaultGroupSummary returns the stock settings offered by the wizard's
// "use defaults" branch.
func DefaultGroupSummary() GroupSummary {
	return GroupSummary{
		Enabled:       true,
		IntervalHours: 3,
		QuietTime:     QuietTime{Start: "22:00", End: "07:00"},
		DeleteAfter:   nil,
		Prompt:        "Resuma as mensagens do grupo de forma clara e objetiva, destacando os principais assuntos discutidos.",
	}
}
