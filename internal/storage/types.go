package storage

import "time"

// DayLayout is the calendar-day partition format used in records.
const DayLayout = "2006-01-02"

// BrowsingRecord is the persisted aggregate for one hostname on one
// calendar day.
type BrowsingRecord struct {
	Hostname    string
	Day         string
	Title       string
	Icon        string
	VisitCount  uint64
	TimeSpentMs uint64
	FirstSeenMs int64
	LastSeenMs  int64
}

// Delta is an incremental accounting update. A visit delta carries
// VisitCount 1 and TimeSpentMs 0; a time delta the reverse.
type Delta struct {
	Hostname    string
	Title       string
	Icon        string
	WhenMs      int64
	TimeSpentMs uint64
	VisitCount  uint64
}

// VisitSummary folds the records of one hostname across a day range.
type VisitSummary struct {
	Hostname    string
	Title       string
	Icon        string
	VisitCount  uint64
	TimeSpentMs uint64
	LastVisitMs int64
	DaysActive  int
}

// Range bounds a query by calendar day. A zero From or To leaves that side
// unbounded.
type Range struct {
	From time.Time
	To   time.Time
}

// Stats holds aggregate statistics about the sitetime database.
type Stats struct {
	TotalRecords   int64
	TotalHostnames int64
	TotalDays      int64
	TotalTimeMs    uint64
	TotalVisits    uint64
	OldestDay      string
	NewestDay      string
	TopHostnames   []HostnameTotal
}

// HostnameTotal pairs a hostname with its all-time totals.
type HostnameTotal struct {
	Hostname    string
	TimeSpentMs uint64
	VisitCount  uint64
}
