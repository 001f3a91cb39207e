package engine

import (
	"encoding/json"
	"testing"
	"time"
)

// =========== ParseTimeOfDay Tests ===========

func TestParseTimeOfDay_Valid(t *testing.T) {
	tests := []struct {
		input   string
		minutes int
	}{
		{"00:00", 0},
		{"08:00", 480},
		{"13:30", 810},
		{"23:59", 1439},
	}

	for _, tc := range tests {
		got, err := ParseTimeOfDay(tc.input)
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): unexpected error: %v", tc.input, err)
			continue
		}
		if int(got) != tc.minutes {
			t.Errorf("ParseTimeOfDay(%q): expected %d minutes, got %d", tc.input, tc.minutes, int(got))
		}
	}
}

func TestParseTimeOfDay_Invalid(t *testing.T) {
	invalids := []string{
		"",
		"8:00",
		"abc",
		"25:00",
		"12:60",
		"12:345",
		"-1:00",
		"08:0a",
		"0800",
	}

	for _, input := range invalids {
		if _, err := ParseTimeOfDay(input); err == nil {
			t.Errorf("ParseTimeOfDay(%q): expected error, got nil", input)
		}
	}
}

func TestTimeOfDay_String(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "00:00"},
		{480, "08:00"},
		{810, "13:30"},
		{1439, "23:59"},
	}

	for _, tc := range tests {
		if got := TimeOfDay(tc.minutes).String(); got != tc.want {
			t.Errorf("TimeOfDay(%d).String(): expected %q, got %q", tc.minutes, tc.want, got)
		}
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	data, err := json.Marshal(TimeOfDay(570))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"09:30"` {
		t.Errorf("expected \"09:30\", got %s", data)
	}

	var parsed TimeOfDay
	if err := json.Unmarshal([]byte(`"14:15"`), &parsed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != TimeOfDay(14*60+15) {
		t.Errorf("expected 855 minutes, got %d", int(parsed))
	}

	if err := json.Unmarshal([]byte(`"24:00"`), &parsed); err == nil {
		t.Error("expected error for out-of-range time")
	}
}

// =========== Date Tests ===========

func TestParseDate_Valid(t *testing.T) {
	d, err := ParseDate("2025-06-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year != 2025 || d.Month != time.June || d.Day != 2 {
		t.Errorf("expected 2025-06-02, got %s", d)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	invalids := []string{"", "2025-13-01", "2025-02-30", "02/06/2025", "2025-6-2"}

	for _, input := range invalids {
		if _, err := ParseDate(input); err == nil {
			t.Errorf("ParseDate(%q): expected error, got nil", input)
		}
	}
}

func TestDate_Weekday(t *testing.T) {
	// 2025-06-02 is a Monday.
	d := Date{Year: 2025, Month: time.June, Day: 2}
	if d.Weekday() != time.Monday {
		t.Errorf("expected Monday, got %s", d.Weekday())
	}
	if d.AddDays(5).Weekday() != time.Saturday {
		t.Errorf("expected Saturday, got %s", d.AddDays(5).Weekday())
	}
}

func TestDate_AddDays(t *testing.T) {
	d := Date{Year: 2025, Month: time.June, Day: 30}

	next := d.AddDays(1)
	if next != (Date{Year: 2025, Month: time.July, Day: 1}) {
		t.Errorf("expected 2025-07-01, got %s", next)
	}

	prev := d.AddDays(-30)
	if prev != (Date{Year: 2025, Month: time.May, Day: 31}) {
		t.Errorf("expected 2025-05-31, got %s", prev)
	}
}

func TestDate_Ordering(t *testing.T) {
	a := Date{Year: 2025, Month: time.June, Day: 2}
	b := Date{Year: 2025, Month: time.June, Day: 3}
	c := Date{Year: 2026, Month: time.January, Day: 1}

	if !a.Before(b) || b.Before(a) {
		t.Error("expected a < b within the same month")
	}
	if !b.Before(c) || !c.After(a) {
		t.Error("expected year to dominate the comparison")
	}
	if a.Before(a) || a.After(a) {
		t.Error("expected a date not to order against itself")
	}
}

func TestDate_JSON(t *testing.T) {
	d := Date{Year: 2025, Month: time.June, Day: 2}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"2025-06-02"` {
		t.Errorf("expected \"2025-06-02\", got %s", data)
	}

	var parsed Date
	if err := json.Unmarshal([]byte(`"2024-12-31"`), &parsed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != (Date{Year: 2024, Month: time.December, Day: 31}) {
		t.Errorf("expected 2024-12-31, got %s", parsed)
	}
}
