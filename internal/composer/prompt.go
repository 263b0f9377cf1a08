package composer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

// DefaultMaxFieldRunes is the per-field cap used when none is configured.
const DefaultMaxFieldRunes = 2000

const separator = "-------------------------\n"

// Composer assembles the summarization prompt for a set of field reports.
type Composer struct {
	// MaxFieldRunes caps each free-text field embedded in the prompt.
	// Zero or negative disables the cap.
	MaxFieldRunes int
}

// New creates a Composer with the given per-field cap. Zero or negative
// disables capping.
func New(maxFieldRunes int) *Composer {
	return &Composer{MaxFieldRunes: maxFieldRunes}
}

// Build returns the prompt for the given report window. Records appear in
// the order given.
func (c *Composer) Build(w fieldreport.Window, records []fieldreport.Record) string {
	var sb strings.Builder

	sb.WriteString("You are BouwBuddy AI, an expert construction project manager. ")
	sb.WriteString("You will be given a series of raw ")
	sb.WriteString(strings.ToLower(w.Title()))
	sb.WriteString(" progress updates from a construction team. ")
	sb.WriteString("Your task is to analyze all the updates and generate three distinct, professional reports in English.\n\n")
	sb.WriteString("Here are the raw updates:\n")
	sb.WriteString(separator)

	for i, r := range records {
		sb.WriteString("Update ")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(":\n")
		c.field(&sb, "Name", r.Name)
		c.field(&sb, "Function", r.Function)
		c.field(&sb, "Company", r.Company)
		c.field(&sb, "Location", r.Location)
		sb.WriteString("- Hours Worked: ")
		sb.WriteString(FormatHours(r.Hours))
		sb.WriteString("\n")
		c.field(&sb, "Task Description", r.TaskDescription)
		c.field(&sb, "Planning Notes", r.PlanningNotes)
		if r.PhotoRef != "" {
			sb.WriteString("- A photo was submitted for this update (ID: ")
			sb.WriteString(c.Sanitize(r.PhotoRef))
			sb.WriteString(").\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(separator)
	sb.WriteString(instructions)
	return sb.String()
}

const instructions = "Based on ALL the information above, please generate the following reports. Be concise and professional.\n\n" +
	"1.  **Hours by Company:** Calculate the total hours worked for each company and list them.\n\n" +
	"2.  **Technical Supervisor's Report:** Synthesize all updates into a technical summary. Mention specific tasks, progress, locations, and any potential blockers or delays mentioned in the planning notes. Refer to photos as evidence where relevant (e.g., '...as documented in the photo from [Name]').\n\n" +
	"3.  **Non-Technical Client Update:** Create a friendly, high-level summary for the client. Avoid technical jargon. Focus on visible progress and milestones. Be positive and reassuring."

func (c *Composer) field(sb *strings.Builder, label, value string) {
	sb.WriteString("- ")
	sb.WriteString(label)
	sb.WriteString(": ")
	sb.WriteString(c.Sanitize(value))
	sb.WriteString("\n")
}

// Sanitize strips control characters other than newline and tab, and caps
// the value at MaxFieldRunes.
func (c *Composer) Sanitize(s string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if c.MaxFieldRunes > 0 && utf8.RuneCountInString(clean) > c.MaxFieldRunes {
		clean = TruncateRunes(clean, c.MaxFieldRunes) + "…"
	}
	return clean
}

// FormatHours renders hours in their shortest exact decimal form.
func FormatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
