package models

import (
	"strings"
	"time"
)

// Report statuses used by the municipal backend.
const (
	StatusSubmitted  = "Submitted"
	StatusFixing     = "Fixing"
	StatusFixed      = "Fixed"
	StatusFalseAlarm = "False Alarm"
)

// Report is a citizen-submitted infrastructure issue record. Status is the
// only field the client ever changes, and only through the reports manager.
type Report struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Department string  `json:"department,omitempty"`
	Address    string  `json:"address,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	Status     string  `json:"status"`
	Timestamp  string  `json:"timestamp"`
}

// ShortID returns the citizen-facing display prefix of the report id,
// e.g. "abc123def" -> "ABC123".
func (r Report) ShortID() string {
	return ShortID(r.ID)
}

// ShortID uppercases the first six characters of a report id.
func ShortID(id string) string {
	if len(id) > 6 {
		id = id[:6]
	}
	return strings.ToUpper(id)
}

// Time parses the report timestamp. The backend emits ISO instants, with or
// without a zone offset depending on the serializer.
func (r Report) Time() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", r.Timestamp)
}
