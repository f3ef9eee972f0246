package admin

import (
	"context"
	"fmt"
	"sync"

	"civiclens/portal/models"
	"civiclens/portal/notify"
)

// ReportService is the backend surface the reports manager needs. The API
// client implements this.
type ReportService interface {
	AdminReports(ctx context.Context) ([]models.Report, error)
	UpdateReportStatus(ctx context.Context, id, status string) error
}

// ReportsManager owns the dashboard's report collection. Status changes
// are applied optimistically and rolled back (with an advisory) when the
// server refuses them. Requests for the same report are serialized so two
// rapid changes cannot land out of order; different reports still proceed
// in parallel.
type ReportsManager struct {
	service ReportService
	toasts  *notify.Hub

	mu      sync.Mutex
	reports []models.Report
	filter  models.ReportFilter
	pending map[string]*sync.Mutex
}

// NewReportsManager creates an empty manager.
func NewReportsManager(service ReportService, toasts *notify.Hub) *ReportsManager {
	return &ReportsManager{
		service: service,
		toasts:  toasts,
		pending: make(map[string]*sync.Mutex),
	}
}

// Load replaces the collection with a fresh fetch. Server order is
// preserved as-is.
func (m *ReportsManager) Load(ctx context.Context) error {
	reports, err := m.service.AdminReports(ctx)
	if err != nil {
		m.toasts.Error("Failed to load reports.")
		return fmt.Errorf("error loading reports: %w", err)
	}

	m.mu.Lock()
	m.reports = reports
	m.mu.Unlock()
	return nil
}

// Reports returns the full collection in server order.
func (m *ReportsManager) Reports() []models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	reports := make([]models.Report, len(m.reports))
	copy(reports, m.reports)
	return reports
}

// SetFilter installs the client-local filter used by Filtered.
func (m *ReportsManager) SetFilter(f models.ReportFilter) {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
}

// Filtered returns the reports passing the current filter, in server
// order. No pagination: every matching report is returned.
func (m *ReportsManager) Filtered() []models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter.Apply(m.reports)
}

// Categories returns the filter options derived from the current fetch:
// the distinct categories present, prefixed with the "All" wildcard.
func (m *ReportsManager) Categories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.Categories(m.reports)
}

// SetStatus moves a report to a new lifecycle status. The local row
// changes immediately; if the server then refuses, the row reverts to its
// previous value and an advisory fires, so local state never stays
// silently diverged.
func (m *ReportsManager) SetStatus(ctx context.Context, id, newStatus string) error {
	// One request at a time per report id.
	lock := m.reportLock(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	idx := -1
	for i := range m.reports {
		if m.reports[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return fmt.Errorf("unknown report %s", id)
	}
	previous := m.reports[idx].Status
	m.reports[idx].Status = newStatus
	m.mu.Unlock()

	if err := m.service.UpdateReportStatus(ctx, id, newStatus); err != nil {
		m.mu.Lock()
		for i := range m.reports {
			if m.reports[i].ID == id {
				m.reports[i].Status = previous
				break
			}
		}
		m.mu.Unlock()
		m.toasts.Error("Failed to update status.")
		return fmt.Errorf("error updating report %s: %w", id, err)
	}

	m.toasts.Success("Report status updated.")
	return nil
}

func (m *ReportsManager) reportLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.pending[id]
	if !ok {
		lock = &sync.Mutex{}
		m.pending[id] = lock
	}
	return lock
}
