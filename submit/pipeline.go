package submit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"civiclens/portal/api"
	"civiclens/portal/geo"
	"civiclens/portal/models"
	"civiclens/portal/notify"
)

// State of the submission pipeline.
type State string

const (
	StateEmpty      State = "empty"
	StateStaged     State = "staged"
	StateSubmitting State = "submitting"
	StateAccepted   State = "accepted"
	StateDuplicate  State = "duplicate"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

// Pipeline operation errors.
var (
	// ErrNoDraft is returned when submit is attempted without a staged
	// image.
	ErrNoDraft = errors.New("no image staged")

	// ErrInFlight is returned when an operation races an active
	// submission.
	ErrInFlight = errors.New("submission in flight")

	// ErrLocationUnconfirmed is returned when no location is locked and
	// the user declined to proceed with the unknown-location sentinel.
	ErrLocationUnconfirmed = errors.New("submission without location not confirmed")
)

// Uploader sends a staged report to the municipal backend. The API client
// implements this.
type Uploader interface {
	SubmitReport(ctx context.Context, filename string, image io.Reader, lat, lon float64) (*api.SubmissionResult, error)
}

// Locator exposes the last locked device position, if any. The geolocation
// acquirer implements this.
type Locator interface {
	Position() (geo.Position, bool)
}

// Draft is the transient staged submission. It never outlives a successful
// submission or an explicit reset.
type Draft struct {
	Filename string
	Image    []byte
	// Preview is the local path the image was staged from, shown to the
	// user in place of a rendered thumbnail.
	Preview string
}

// Result is the interpreted verdict on a submission. Accepted and
// Duplicate are both terminal-success outcomes; they differ only in how
// the confirmation is labeled. Rejected carries no report reference.
type Result struct {
	Outcome    State
	ReportID   string
	Issue      string
	AssignedTo string
	Status     string
}

// Headline returns the confirmation title for a terminal-success outcome.
func (r Result) Headline() string {
	if r.Outcome == StateDuplicate {
		return "Merged Duplicate"
	}
	return "Report Submitted"
}

// Pipeline drives a report submission from staging through the server's
// classification. Exactly one network call is issued per submission; a
// retry after failure is always a fresh user-initiated submit.
type Pipeline struct {
	uploader Uploader
	locator  Locator
	toasts   *notify.Hub

	mu      sync.Mutex
	state   State
	draft   *Draft
	result  *Result
	refresh func(lat, lon float64)
}

// NewPipeline creates an empty pipeline.
func NewPipeline(uploader Uploader, locator Locator, toasts *notify.Hub) *Pipeline {
	return &Pipeline{
		uploader: uploader,
		locator:  locator,
		toasts:   toasts,
		state:    StateEmpty,
	}
}

// OnSuccess registers the hook fired after an Accepted or Duplicate
// outcome with a known location, e.g. to refresh the nearby feed.
func (p *Pipeline) OnSuccess(fn func(lat, lon float64)) {
	p.mu.Lock()
	p.refresh = fn
	p.mu.Unlock()
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Draft returns the staged draft, or nil.
func (p *Pipeline) Draft() *Draft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

// Result returns the last submission result, or nil.
func (p *Pipeline) Result() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Stage loads a captured or dropped image, clearing any prior result or
// error state. Staging during an active submission is refused.
func (p *Pipeline) Stage(filename string, image []byte, preview string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateSubmitting {
		return ErrInFlight
	}

	p.draft = &Draft{Filename: filename, Image: image, Preview: preview}
	p.result = nil
	p.state = StateStaged
	return nil
}

// Reset discards the draft and result and returns to the empty state. This
// is the "submit another report" action and is always available.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateSubmitting {
		return
	}
	p.draft = nil
	p.result = nil
	p.state = StateEmpty
}

// Submit sends the staged draft to the backend and interprets the verdict.
//
// When no location has ever been locked, confirmNoLocation is consulted
// before anything is sent; declining aborts with no network call, and
// accepting tags the report with the (0, 0) unknown-location sentinel
// instead of silently mislabeling it.
func (p *Pipeline) Submit(ctx context.Context, confirmNoLocation func() bool) (*Result, error) {
	p.mu.Lock()
	if p.state == StateSubmitting {
		p.mu.Unlock()
		return nil, ErrInFlight
	}
	if p.draft == nil {
		p.mu.Unlock()
		return nil, ErrNoDraft
	}
	draft := *p.draft

	lat, lon := 0.0, 0.0
	pos, located := p.locator.Position()
	if located {
		lat, lon = pos.Latitude, pos.Longitude
	} else if confirmNoLocation == nil || !confirmNoLocation() {
		p.mu.Unlock()
		return nil, ErrLocationUnconfirmed
	}

	p.state = StateSubmitting
	p.mu.Unlock()

	res, err := p.uploader.SubmitReport(ctx, draft.Filename, bytes.NewReader(draft.Image), lat, lon)

	p.mu.Lock()
	if err != nil {
		// Transport or server failure: keep the draft so the user can
		// retry without re-selecting the file.
		p.state = StateFailed
		p.mu.Unlock()
		p.toasts.Error("Submission failed. Ensure backend is running.")
		return nil, fmt.Errorf("error submitting report: %w", err)
	}

	result := interpret(res)
	p.result = &result
	p.state = result.Outcome

	if result.Outcome == StateRejected {
		// Not an error, just a verdict. The draft stays discardable but
		// is not auto-retried.
		p.mu.Unlock()
		p.toasts.Error("No significant issue detected by analysis.")
		return &result, nil
	}

	// Terminal success: the draft's job is done.
	p.draft = nil
	refresh := p.refresh
	p.mu.Unlock()

	if located && refresh != nil {
		refresh(lat, lon)
	}
	return &result, nil
}

// interpret classifies the server response. Anything that is not an
// explicit rejection or duplicate counts as accepted.
func interpret(res *api.SubmissionResult) Result {
	switch res.Status {
	case "rejected":
		return Result{Outcome: StateRejected, Status: res.Status}
	case "duplicate":
		return Result{
			Outcome:    StateDuplicate,
			ReportID:   res.ReportRef(),
			Issue:      res.Issue,
			AssignedTo: res.AssignedTo,
			Status:     models.StatusSubmitted,
		}
	default:
		status := res.Status
		// The legacy serializer reports "success" instead of the new
		// report's lifecycle status.
		if status == "success" {
			status = models.StatusSubmitted
		}
		return Result{
			Outcome:    StateAccepted,
			ReportID:   res.ReportRef(),
			Issue:      res.Issue,
			AssignedTo: res.AssignedTo,
			Status:     status,
		}
	}
}
