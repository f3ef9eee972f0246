package models

import (
	"reflect"
	"testing"
)

func testReports() []Report {
	return []Report{
		{ID: "abc123def", Category: "pothole", City: "Springfield", Status: StatusFixing},
		{ID: "def456ghi", Category: "garbage_pile", City: "Springfield", Status: StatusFixing},
		{ID: "ghi789jkl", Category: "pothole", City: "Shelbyville", Status: StatusSubmitted},
		{ID: "jkl012mno", Category: "pothole", City: "Springfield", Status: StatusFixed},
		{ID: "mno345pqr", Category: "overflowing", City: "", Status: StatusFalseAlarm},
	}
}

func TestFilterMatchesStatus(t *testing.T) {
	f := ReportFilter{Status: StatusFixing}
	got := f.Apply(testReports())
	if len(got) != 2 {
		t.Errorf("expected 2 reports with status Fixing, got %d", len(got))
	}
}

func TestFilterWildcardMatchesEverything(t *testing.T) {
	f := ReportFilter{Status: FilterAll, Category: FilterAll}
	reports := testReports()
	got := f.Apply(reports)
	if len(got) != len(reports) {
		t.Errorf("wildcard filter dropped reports: got %d want %d", len(got), len(reports))
	}
}

func TestFilterSearchIsCaseInsensitive(t *testing.T) {
	f := ReportFilter{Search: "SPRING"}
	got := f.Apply(testReports())
	if len(got) != 3 {
		t.Errorf("expected 3 reports matching city substring, got %d", len(got))
	}

	// Search also matches against the report id.
	f = ReportFilter{Search: "ABC123"}
	got = f.Apply(testReports())
	if len(got) != 1 || got[0].ID != "abc123def" {
		t.Errorf("expected id search to match abc123def, got %v", got)
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	f := ReportFilter{Status: StatusFixing, Category: FilterAll, Search: "spring"}
	once := f.Apply(testReports())
	twice := f.Apply(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("re-applying the filter changed the result: %v vs %v", once, twice)
	}
}

func TestFilterFieldsCommute(t *testing.T) {
	reports := testReports()
	combined := ReportFilter{Status: StatusFixing, Search: "spring"}.Apply(reports)

	// Applying the fields one at a time, in either order, must select the
	// same subset.
	statusFirst := ReportFilter{Search: "spring"}.Apply(ReportFilter{Status: StatusFixing}.Apply(reports))
	searchFirst := ReportFilter{Status: StatusFixing}.Apply(ReportFilter{Search: "spring"}.Apply(reports))

	if !reflect.DeepEqual(combined, statusFirst) || !reflect.DeepEqual(combined, searchFirst) {
		t.Errorf("filter application order changed the result")
	}
}

func TestFilterScenarioFixingSpringfield(t *testing.T) {
	// 10 reports, exactly 2 of which are Fixing in a city containing
	// "Springfield".
	reports := []Report{
		{ID: "r1", Category: "pothole", City: "Springfield", Status: StatusFixing},
		{ID: "r2", Category: "garbage_pile", City: "West Springfield", Status: StatusFixing},
		{ID: "r3", Category: "pothole", City: "Springfield", Status: StatusFixed},
		{ID: "r4", Category: "pothole", City: "Shelbyville", Status: StatusFixing},
		{ID: "r5", Category: "overflowing", City: "Springfield", Status: StatusSubmitted},
		{ID: "r6", Category: "pothole", City: "Ogdenville", Status: StatusFixed},
		{ID: "r7", Category: "full", City: "", Status: StatusFixing},
		{ID: "r8", Category: "pothole", City: "Capital City", Status: StatusSubmitted},
		{ID: "r9", Category: "garbage_pile", City: "Springfield", Status: StatusFalseAlarm},
		{ID: "r10", Category: "pothole", City: "North Haverbrook", Status: StatusFixed},
	}

	f := ReportFilter{Status: StatusFixing, Category: FilterAll, Search: "spring"}
	got := f.Apply(reports)
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 visible rows, got %d", len(got))
	}
	if got[0].ID != "r1" || got[1].ID != "r2" {
		t.Errorf("expected r1 and r2 in server order, got %s and %s", got[0].ID, got[1].ID)
	}
}

func TestCategoriesDeriveFromFetch(t *testing.T) {
	got := Categories(testReports())
	want := []string{FilterAll, "pothole", "garbage_pile", "overflowing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got categories %v, want %v", got, want)
	}
}

func TestShortID(t *testing.T) {
	r := Report{ID: "abc123def456"}
	if r.ShortID() != "ABC123" {
		t.Errorf("expected ABC123, got %s", r.ShortID())
	}

	// Short ids pass through unchanged apart from case.
	if ShortID("ab") != "AB" {
		t.Errorf("expected AB, got %s", ShortID("ab"))
	}
}
