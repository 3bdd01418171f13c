package event

import (
	"strings"
	"testing"
	"time"
)

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	cases := []string{
		"2024-03-01T10:30:00Z",
		"2024-03-01T12:30:00+02:00",
		"2024-03-01T10:30:00.000Z",
		"2024-03-01T10:30:00",
		"2024-03-01 10:30:00",
		"2024-03-01T10:30",
	}
	for _, c := range cases {
		got, err := ParseTime(c)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", c, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseTime(%q) = %v, want %v", c, got, want)
		}
		if got.Location() != time.UTC {
			t.Fatalf("ParseTime(%q) not normalized to UTC", c)
		}
	}
	d, err := ParseTime("2024-03-01")
	if err != nil || !d.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date only: %v %v", d, err)
	}
}

func TestParseTimeRejects(t *testing.T) {
	for _, c := range []string{"", "   ", "yesterday", "2024-13-01", "01/02/2024"} {
		if _, err := ParseTime(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestIsID(t *testing.T) {
	good := []string{
		"3f1c2a9e-8b7d-4c6e-9a5b-1d2e3f4a5b6c",
		"3F1C2A9E-8B7D-4C6E-9A5B-1D2E3F4A5B6C",
		NewID(),
	}
	for _, g := range good {
		if !IsID(g) {
			t.Fatalf("expected %q to be an id", g)
		}
	}
	bad := []string{
		"",
		"NULL",
		"3f1c2a9e8b7d4c6e9a5b1d2e3f4a5b6c",
		"{3f1c2a9e-8b7d-4c6e-9a5b-1d2e3f4a5b6c}",
		"urn:uuid:3f1c2a9e-8b7d-4c6e-9a5b-1d2e3f4a5b6c",
		"3f1c2a9e-8b7d-4c6e-9a5b-1d2e3f4a5b6z",
		strings.Repeat("a", 36),
	}
	for _, b := range bad {
		if IsID(b) {
			t.Fatalf("expected %q to be rejected", b)
		}
	}
}
