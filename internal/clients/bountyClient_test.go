package clients

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"
)

func TestParseReportDateStripsOrdinals(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"Mar 3rd 2022", time.Date(2022, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"Jan 1st 2021", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"Aug 22nd 2020", time.Date(2020, 8, 22, 0, 0, 0, 0, time.UTC)},
		{"Dec 15th 2023", time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		got, err := parseReportDate(tc.raw)
		if err != nil {
			t.Fatalf("parseReportDate(%q): %v", tc.raw, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("parseReportDate(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestFindReportedOnWalksThePage(t *testing.T) {
	page := `<html><body>
		<div class="header">Some bounty title</div>
		<div><span>Reported on Mar 3rd 2022</span></div>
	</body></html>`

	document, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}

	reported, ok := findReportedOn(document)
	if !ok {
		t.Fatal("expected a report date")
	}

	want := time.Date(2022, 3, 3, 0, 0, 0, 0, time.UTC)
	if !reported.Equal(want) {
		t.Fatalf("got %v, want %v", reported, want)
	}
}

func TestFindReportedOnMissingDate(t *testing.T) {
	page := `<html><body><p>Nothing of interest</p></body></html>`

	document, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}

	if _, ok := findReportedOn(document); ok {
		t.Fatal("expected no report date")
	}
}
