package submit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"civiclens/portal/api"
	"civiclens/portal/geo"
	"civiclens/portal/notify"
)

type fakeUploader struct {
	result *api.SubmissionResult
	err    error
	calls  int

	lastLat, lastLon float64
}

func (u *fakeUploader) SubmitReport(ctx context.Context, filename string, image io.Reader, lat, lon float64) (*api.SubmissionResult, error) {
	u.calls++
	u.lastLat, u.lastLon = lat, lon
	if u.err != nil {
		return nil, u.err
	}
	return u.result, nil
}

type fakeLocator struct {
	pos    geo.Position
	locked bool
}

func (l *fakeLocator) Position() (geo.Position, bool) {
	return l.pos, l.locked
}

func newTestPipeline(uploader *fakeUploader, locator *fakeLocator) (*Pipeline, *notify.Hub) {
	hub := notify.NewHub(time.Hour)
	return NewPipeline(uploader, locator, hub), hub
}

func stage(t *testing.T, p *Pipeline) {
	t.Helper()
	if err := p.Stage("pothole.jpg", []byte("jpeg-bytes"), "/tmp/pothole.jpg"); err != nil {
		t.Fatalf("stage failed: %v", err)
	}
}

func TestAcceptedSubmission(t *testing.T) {
	uploader := &fakeUploader{result: &api.SubmissionResult{
		ID:         "abc123def456",
		Status:     "Submitted",
		Issue:      "pothole",
		AssignedTo: "Roads Dept",
	}}
	locator := &fakeLocator{pos: geo.Position{Latitude: 12.97, Longitude: 77.59}, locked: true}
	p, _ := newTestPipeline(uploader, locator)

	var refreshedLat, refreshedLon float64
	refreshed := false
	p.OnSuccess(func(lat, lon float64) {
		refreshed = true
		refreshedLat, refreshedLon = lat, lon
	})

	if p.State() != StateEmpty {
		t.Fatalf("new pipeline state %q", p.State())
	}
	stage(t, p)
	if p.State() != StateStaged {
		t.Fatalf("state after staging %q", p.State())
	}

	result, err := p.Submit(context.Background(), nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if p.State() != StateAccepted || result.Outcome != StateAccepted {
		t.Errorf("expected accepted outcome, got state %q outcome %q", p.State(), result.Outcome)
	}
	if result.ReportID != "abc123def456" || result.Issue != "pothole" ||
		result.AssignedTo != "Roads Dept" || result.Status != "Submitted" {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Headline() != "Report Submitted" {
		t.Errorf("unexpected headline %q", result.Headline())
	}

	if uploader.calls != 1 {
		t.Errorf("expected exactly one network call, got %d", uploader.calls)
	}
	if uploader.lastLat != 12.97 || uploader.lastLon != 77.59 {
		t.Errorf("submitted coordinates (%v, %v)", uploader.lastLat, uploader.lastLon)
	}

	if p.Draft() != nil {
		t.Error("draft should be destroyed on success")
	}
	if !refreshed || refreshedLat != 12.97 || refreshedLon != 77.59 {
		t.Errorf("nearby refresh not triggered at the submit coordinates (%v, %v)", refreshedLat, refreshedLon)
	}
}

func TestDuplicateSubmission(t *testing.T) {
	uploader := &fakeUploader{result: &api.SubmissionResult{
		Status:     "duplicate",
		OriginalID: "orig-42",
		Issue:      "garbage_pile",
		AssignedTo: "Sanitation Dept",
	}}
	p, _ := newTestPipeline(uploader, &fakeLocator{locked: true})

	refreshed := false
	p.OnSuccess(func(lat, lon float64) { refreshed = true })

	stage(t, p)
	result, err := p.Submit(context.Background(), nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if result.Outcome != StateDuplicate || result.ReportID != "orig-42" {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Headline() != "Merged Duplicate" {
		t.Errorf("unexpected headline %q", result.Headline())
	}
	if p.Draft() != nil {
		t.Error("duplicate is a terminal success, draft should be gone")
	}
	if !refreshed {
		t.Error("duplicate outcome should also refresh the nearby feed")
	}
}

func TestRejectedSubmissionKeepsDraftDiscardable(t *testing.T) {
	uploader := &fakeUploader{result: &api.SubmissionResult{Status: "rejected"}}
	p, hub := newTestPipeline(uploader, &fakeLocator{locked: true})

	refreshed := false
	p.OnSuccess(func(lat, lon float64) { refreshed = true })

	stage(t, p)
	result, err := p.Submit(context.Background(), nil)
	if err != nil {
		t.Fatalf("rejected is a verdict, not an error: %v", err)
	}

	if result.Outcome != StateRejected || p.State() != StateRejected {
		t.Errorf("expected rejected outcome, got %+v state %q", result, p.State())
	}
	if p.Draft() == nil {
		t.Error("draft should remain after rejection")
	}
	if refreshed {
		t.Error("rejection must not refresh the nearby feed")
	}

	toasts := hub.Active()
	if len(toasts) != 1 || toasts[0].Kind != notify.Error {
		t.Errorf("expected a single advisory, got %+v", toasts)
	}

	// The draft stays discardable.
	p.Reset()
	if p.State() != StateEmpty || p.Draft() != nil {
		t.Error("reset after rejection should empty the pipeline")
	}
}

func TestFailedSubmissionPreservesDraftForRetry(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("connection refused")}
	p, hub := newTestPipeline(uploader, &fakeLocator{locked: true})

	stage(t, p)
	if _, err := p.Submit(context.Background(), nil); err == nil {
		t.Fatal("expected submit to fail")
	}

	if p.State() != StateFailed {
		t.Errorf("state %q after transport failure", p.State())
	}
	if p.Draft() == nil {
		t.Fatal("draft must survive a failed submission")
	}
	if len(hub.Active()) != 1 {
		t.Error("expected a failure advisory")
	}

	// Retry is a fresh user-initiated submit reusing the preserved draft.
	uploader.err = nil
	uploader.result = &api.SubmissionResult{ReportID: "r1", Status: "success", Issue: "pothole", AssignedTo: "Roads Dept"}

	result, err := p.Submit(context.Background(), nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if uploader.calls != 2 {
		t.Errorf("expected one call per submit entry, got %d", uploader.calls)
	}
	if result.Outcome != StateAccepted || result.Status != "Submitted" {
		t.Errorf("legacy success response not normalized: %+v", result)
	}
}

func TestSubmitWithoutDraft(t *testing.T) {
	uploader := &fakeUploader{}
	p, _ := newTestPipeline(uploader, &fakeLocator{locked: true})

	if _, err := p.Submit(context.Background(), nil); !errors.Is(err, ErrNoDraft) {
		t.Errorf("got %v, want ErrNoDraft", err)
	}
	if uploader.calls != 0 {
		t.Error("no network call may happen without a draft")
	}
}

func TestUnknownLocationRequiresConfirmation(t *testing.T) {
	uploader := &fakeUploader{result: &api.SubmissionResult{ReportID: "r1", Status: "success"}}
	p, _ := newTestPipeline(uploader, &fakeLocator{locked: false})

	stage(t, p)

	// Declining aborts before any network traffic.
	if _, err := p.Submit(context.Background(), func() bool { return false }); !errors.Is(err, ErrLocationUnconfirmed) {
		t.Errorf("got %v, want ErrLocationUnconfirmed", err)
	}
	if uploader.calls != 0 {
		t.Fatal("declined confirmation still issued a network call")
	}
	if p.Draft() == nil || p.State() != StateStaged {
		t.Error("aborted submit should leave the staged draft untouched")
	}

	// Confirming proceeds with the sentinel coordinates.
	if _, err := p.Submit(context.Background(), func() bool { return true }); err != nil {
		t.Fatalf("confirmed submit failed: %v", err)
	}
	if uploader.lastLat != 0.0 || uploader.lastLon != 0.0 {
		t.Errorf("expected sentinel (0, 0), got (%v, %v)", uploader.lastLat, uploader.lastLon)
	}
}

func TestStagingClearsPriorResult(t *testing.T) {
	uploader := &fakeUploader{result: &api.SubmissionResult{ReportID: "r1", Status: "success"}}
	p, _ := newTestPipeline(uploader, &fakeLocator{locked: true})

	stage(t, p)
	if _, err := p.Submit(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if p.Result() == nil {
		t.Fatal("expected a result")
	}

	stage(t, p)
	if p.Result() != nil {
		t.Error("staging a new image should clear the prior result")
	}
	if p.State() != StateStaged {
		t.Errorf("state %q after re-staging", p.State())
	}
}
