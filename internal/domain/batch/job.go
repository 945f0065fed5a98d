package batch

import (
	"time"

	"github.com/okian/roster/internal/domain/model"
)

// Job renders one team roster to one output file. Mutable fields are guarded
// by the owning Run.
type Job struct {
	ID     int
	Roster model.TeamRoster
	// Target is the reserved output file name; empty when the job cannot render.
	Target string

	// skip is set at construction for jobs that fail as soon as they are claimed.
	skip error

	state      State
	err        error
	warnings   []error
	startedAt  time.Time
	finishedAt time.Time
}

// Skip returns the reason this job fails without rendering, or nil.
func (j *Job) Skip() error { return j.skip }

// JobStatus is a point-in-time copy of a job.
type JobStatus struct {
	ID         int
	TeamID     int64
	TeamName   string
	Target     string
	State      State
	Err        error
	Warnings   []error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (j *Job) status() JobStatus {
	return JobStatus{
		ID:         j.ID,
		TeamID:     j.Roster.TeamID,
		TeamName:   j.Roster.TeamName,
		Target:     j.Target,
		State:      j.state,
		Err:        j.err,
		Warnings:   append([]error(nil), j.warnings...),
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
}
