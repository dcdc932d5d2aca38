package main

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestPad_UsesDisplayWidth(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"ok", 6, "ok    "},
		{"気象庁", 8, "気象庁  "},
		{"exactly", 7, "exactly"},
		{"wider-than-col", 3, "wider-than-col"},
	}
	for _, tc := range cases {
		if got := pad(tc.in, tc.width); got != tc.want {
			t.Errorf("pad(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func TestRenderTable_AlignsMultiWidthRunes(t *testing.T) {
	rows := []row{
		{provider: "openweather", status: statusOK, detail: "15.5°C, scattered clouds in London"},
		{provider: "気象庁", status: statusFailed, detail: "timeout"},
		{provider: "noaa", status: statusSkipped, detail: "NOAA_API_TOKEN not set"},
	}

	out := renderTable(rows)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5 (header, separator, 3 rows)", len(lines))
	}

	wantFirst := runewidth.StringWidth(lines[0][:strings.Index(lines[0], "|")])
	for i, line := range lines {
		if i == 1 {
			continue // separator row uses + instead of |
		}
		idx := strings.Index(line, "|")
		if idx < 0 {
			t.Fatalf("line %d missing column separator: %q", i, line)
		}
		if got := runewidth.StringWidth(line[:idx]); got != wantFirst {
			t.Errorf("line %d: first column width = %d, want %d", i, got, wantFirst)
		}
	}

	if !strings.HasPrefix(lines[0], "provider") {
		t.Errorf("header = %q, want provider column first", lines[0])
	}
	if !strings.Contains(lines[1], "-+-") {
		t.Errorf("separator = %q, want column markers", lines[1])
	}
}

func TestRenderTable_StatusColumnSizedByWidestStatus(t *testing.T) {
	rows := []row{
		{provider: "giss", status: statusOK, detail: "144 years"},
		{provider: "newsdata", status: statusSkipped, detail: "NEWSDATA_API_KEY not set"},
	}

	out := renderTable(rows)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if strings.Contains(line, "-+-") {
			continue
		}
		parts := strings.SplitN(line, " | ", 3)
		if len(parts) != 3 {
			t.Fatalf("line %q: columns = %d, want 3", line, len(parts))
		}
		if got, want := runewidth.StringWidth(parts[1]), len(statusSkipped); got != want {
			t.Errorf("line %q: status column width = %d, want %d", line, got, want)
		}
	}
}
