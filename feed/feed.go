package feed

import (
	"context"
	"log"
	"sync"

	"civiclens/portal/models"
)

// Source lists the reports near a coordinate pair. The API client
// implements this.
type Source interface {
	NearbyReports(ctx context.Context, lat, lon float64) ([]models.Report, error)
}

// Feed holds the citizen's nearby-reports snapshot. Every refresh fully
// replaces the previous set; a failed refresh keeps the old one. Nearby
// reports are informational, so failures are logged and never surfaced to
// the user.
type Feed struct {
	source Source

	mu      sync.Mutex
	reports []models.Report
}

// New creates an empty feed backed by a report source.
func New(source Source) *Feed {
	return &Feed{source: source}
}

// Refresh replaces the snapshot with the reports near (lat, lon). Safe to
// call repeatedly; results never accumulate.
func (f *Feed) Refresh(ctx context.Context, lat, lon float64) {
	reports, err := f.source.NearbyReports(ctx, lat, lon)
	if err != nil {
		log.Printf("Could not fetch nearby reports: %v", err)
		return
	}

	f.mu.Lock()
	f.reports = reports
	f.mu.Unlock()
}

// Reports returns the current snapshot.
func (f *Feed) Reports() []models.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	reports := make([]models.Report, len(f.reports))
	copy(reports, f.reports)
	return reports
}
