package composer

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

func makeRecord(name, company string, hours float64) fieldreport.Record {
	return fieldreport.Record{
		ID:              name + "-id",
		Name:            name,
		Function:        "Carpenter",
		Company:         company,
		Location:        "North Tower",
		Hours:           hours,
		TaskDescription: "Framed partition walls",
		PlanningNotes:   "Waiting for inspection",
		PhotoRef:        "photo-" + name,
		SubmittedAt:     time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuild_Structure(t *testing.T) {
	c := New(0)
	out := c.Build(fieldreport.WindowDaily, []fieldreport.Record{
		makeRecord("Jan", "Acme", 7.5),
		makeRecord("Piet", "BouwCo", 8),
	})

	if !strings.HasPrefix(out, "You are BouwBuddy AI") {
		t.Errorf("missing preamble: %q", out[:40])
	}
	if !strings.Contains(out, "raw daily progress updates") {
		t.Error("preamble should name the report type")
	}
	for _, want := range []string{
		"Update 1:\n- Name: Jan\n- Function: Carpenter\n- Company: Acme\n- Location: North Tower\n- Hours Worked: 7.5\n",
		"- Task Description: Framed partition walls\n- Planning Notes: Waiting for inspection\n- A photo was submitted for this update (ID: photo-Jan).\n",
		"Update 2:\n- Name: Piet\n",
		"- Hours Worked: 8\n",
		"**Hours by Company:**",
		"**Technical Supervisor's Report:**",
		"**Non-Technical Client Update:**",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if strings.Index(out, "Name: Jan") > strings.Index(out, "Name: Piet") {
		t.Error("record blocks out of order")
	}
	if strings.Count(out, "Update ") != 2 {
		t.Errorf("expected 2 record blocks, got %d", strings.Count(out, "Update "))
	}
}

func TestBuild_WeeklyPreamble(t *testing.T) {
	out := New(0).Build(fieldreport.WindowWeekly, []fieldreport.Record{makeRecord("Jan", "Acme", 1)})
	if !strings.Contains(out, "raw weekly progress updates") {
		t.Error("weekly prompt should say weekly")
	}
}

func TestFormatHours(t *testing.T) {
	cases := map[float64]string{
		7.5:   "7.5",
		8:     "8",
		0.125: "0.125",
		10.33: "10.33",
		0:     "0",
	}
	for in, want := range cases {
		if got := FormatHours(in); got != want {
			t.Errorf("FormatHours(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitize_CapsAndStripsControls(t *testing.T) {
	c := New(10)
	if got := c.Sanitize("ab\x00c\td\ne"); got != "abc\td\ne" {
		t.Errorf("Sanitize = %q", got)
	}

	got := c.Sanitize(strings.Repeat("é", 25))
	if utf8.RuneCountInString(got) != 11 || !strings.HasSuffix(got, "…") {
		t.Errorf("capped value = %q (%d runes)", got, utf8.RuneCountInString(got))
	}

	uncapped := New(-1)
	long := strings.Repeat("x", 5000)
	if uncapped.Sanitize(long) != long {
		t.Error("negative cap should disable truncation")
	}
}

func TestNew_ZeroDisablesCap(t *testing.T) {
	long := strings.Repeat("x", 5000)
	r := makeRecord("Jan", "Acme", 8)
	r.TaskDescription = long

	out := New(0).Build(fieldreport.WindowDaily, []fieldreport.Record{r})
	if !strings.Contains(out, "- Task Description: "+long+"\n") {
		t.Error("zero cap should embed the full task description")
	}
	if strings.Contains(out, "…") {
		t.Error("zero cap should not truncate")
	}
}

func TestBuild_SanitizesPhotoRef(t *testing.T) {
	r := makeRecord("Jan", "Acme", 8)
	r.PhotoRef = "AgAC\x00\x1bBQ"

	out := New(DefaultMaxFieldRunes).Build(fieldreport.WindowDaily, []fieldreport.Record{r})
	if !strings.Contains(out, "(ID: AgACBQ).") {
		t.Errorf("photo reference not sanitized in:\n%s", out)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("héllo", 2); got != "hé" {
		t.Errorf("TruncateRunes = %q", got)
	}
	if got := TruncateRunes("abc", 10); got != "abc" {
		t.Errorf("TruncateRunes = %q", got)
	}
	if got := TruncateRunes("abc", 0); got != "" {
		t.Errorf("TruncateRunes = %q", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("empty string should be 0 tokens")
	}
	if EstimateTokens("abcd") != 1 || EstimateTokens("abcde") != 2 {
		t.Error("unexpected estimate")
	}
}
