package job

import "time"

// Status describes where a job is in its conversion pipeline.
type Status string

const (
	StatusQueued        Status = "queued"
	StatusProbing       Status = "probing"
	StatusConverting    Status = "converting"
	StatusPackagingHLS  Status = "packaging-hls"
	StatusPackagingDASH Status = "packaging-dash"
	StatusDone          Status = "done"
	StatusError         Status = "error"
)

var statusRank = map[Status]int{
	StatusQueued:        0,
	StatusProbing:       1,
	StatusConverting:    2,
	StatusPackagingHLS:  3,
	StatusPackagingDASH: 4,
	StatusDone:          5,
	StatusError:         6,
}

// Terminal reports whether no further status change is allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// CanTransition reports whether moving from s to next preserves the
// pipeline order. Statuses only move forward, and error is reachable
// from any non-terminal status.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusError {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	return ok && to > from
}

// Artifacts holds the filesystem locations owned exclusively by one job.
type Artifacts struct {
	InputPath  string
	Dir        string
	OutputPath string
	HLSDir     string
	DASHDir    string
}

// Job is one submitted conversion request and its lifecycle state.
type Job struct {
	ID        string
	Status    Status
	Progress  int
	Duration  float64 // container duration in seconds, 0 when unknown
	Err       string
	Artifacts Artifacts
	CreatedAt time.Time
}
