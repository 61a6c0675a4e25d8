// Package status tracks the progress of each template in a batch.
//
// A template moves through
//
//	Pending -> Downloading -> Extracting -> Building -> Completed | Degraded
//
// and may drop to Failed from any non-terminal phase. Transitions are
// guarded: an out-of-order call returns an error and leaves the phase as is.
package status

import (
	"fmt"
	"time"
)

// Phase is the lifecycle phase of one template build.
type Phase string

const (
	PhasePending     Phase = "Pending"
	PhaseDownloading Phase = "Downloading"
	PhaseExtracting  Phase = "Extracting"
	PhaseBuilding    Phase = "Building"
	PhaseCompleted   Phase = "Completed"
	PhaseDegraded    Phase = "Degraded"
	PhaseFailed      Phase = "Failed"
)

// Result is the record of one template build.
type Result struct {
	ID           int       `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Distribution string    `json:"distribution" yaml:"distribution"`
	Version      string    `json:"version" yaml:"version"`
	Phase        Phase     `json:"phase" yaml:"phase"`
	FailedSteps  []string  `json:"failedSteps,omitempty" yaml:"failedSteps,omitempty"`
	Message      string    `json:"message,omitempty" yaml:"message,omitempty"`
	Started      time.Time `json:"started" yaml:"started"`
	Finished     time.Time `json:"finished,omitempty" yaml:"finished,omitempty"`

	now func() time.Time
}

// NewResult returns a Pending result.
func NewResult(id int, name, distribution, version string) *Result {
	r := &Result{
		ID:           id,
		Name:         name,
		Distribution: distribution,
		Version:      version,
		Phase:        PhasePending,
		now:          time.Now,
	}
	r.Started = r.now()
	return r
}

func (r *Result) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// Duration is the wall time from start to finish, or to now while running.
// A result that never started has no duration.
func (r *Result) Duration() time.Duration {
	if r.Started.IsZero() {
		return 0
	}
	end := r.Finished
	if end.IsZero() {
		end = r.clock()
	}
	return end.Sub(r.Started)
}

// TransitionToDownloading is called when the image download starts.
func TransitionToDownloading(r *Result) error {
	if r.Phase != PhasePending {
		return fmt.Errorf("cannot transition to Downloading from phase %s", r.Phase)
	}
	r.Phase = PhaseDownloading
	return nil
}

// TransitionToExtracting is called once the download is on disk.
func TransitionToExtracting(r *Result) error {
	if r.Phase != PhaseDownloading {
		return fmt.Errorf("cannot transition to Extracting from phase %s", r.Phase)
	}
	r.Phase = PhaseExtracting
	return nil
}

// TransitionToBuilding is called before the first qm command.
func TransitionToBuilding(r *Result) error {
	if r.Phase != PhaseExtracting {
		return fmt.Errorf("cannot transition to Building from phase %s", r.Phase)
	}
	r.Phase = PhaseBuilding
	return nil
}

// MarkStepFailed records a qm step that exited non-zero but did not stop
// the build.
func MarkStepFailed(r *Result, step string) {
	r.FailedSteps = append(r.FailedSteps, step)
}

// TransitionToFinished ends a build. The result is Degraded when any step
// failed along the way, Completed otherwise.
func TransitionToFinished(r *Result) error {
	if r.Phase != PhaseBuilding {
		return fmt.Errorf("cannot finish from phase %s", r.Phase)
	}
	if len(r.FailedSteps) > 0 {
		r.Phase = PhaseDegraded
		r.Message = fmt.Sprintf("%d step(s) failed", len(r.FailedSteps))
	} else {
		r.Phase = PhaseCompleted
	}
	r.Finished = r.clock()
	return nil
}

// TransitionToFailed marks the build as failed. Terminal results are left
// untouched.
func TransitionToFailed(r *Result, message string) {
	if IsTerminal(r.Phase) {
		return
	}
	r.Phase = PhaseFailed
	r.Message = message
	r.Finished = r.clock()
}

// IsTerminal returns true for Completed, Degraded and Failed.
func IsTerminal(phase Phase) bool {
	return phase == PhaseCompleted || phase == PhaseDegraded || phase == PhaseFailed
}

// IsSuccess returns true when a template was produced, even with warnings.
func IsSuccess(phase Phase) bool {
	return phase == PhaseCompleted || phase == PhaseDegraded
}

// Summary counts results by terminal phase.
type Summary struct {
	Completed int
	Degraded  int
	Failed    int
	Pending   int
}

// Summarize tallies results. Anything not terminal counts as pending.
func Summarize(results []*Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Phase {
		case PhaseCompleted:
			s.Completed++
		case PhaseDegraded:
			s.Degraded++
		case PhaseFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}

func (s Summary) String() string {
	msg := fmt.Sprintf("%d completed, %d degraded, %d failed", s.Completed, s.Degraded, s.Failed)
	if s.Pending > 0 {
		msg += fmt.Sprintf(", %d not attempted", s.Pending)
	}
	return msg
}
