package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

// staleCount matches hardcoded counts left in stored templates, e.g.
// "5 constituents have birthdays tomorrow." or "Send wishes to 5 people celebrating today."
var staleCount = regexp.MustCompile(
	`(?i)(send\s+wishes\s+to\s+)?\d+\s+(constituents?|people|persons?|members?|contacts?)\s+` +
		`(have\s+(birthdays?|anniversar(y|ies))|(are\s+)?celebrating)(\s+(today|tomorrow))?\s*[.!]?`)

var (
	multiSpace       = regexp.MustCompile(`\s{2,}`)
	spaceBeforePunct = regexp.MustCompile(`\s+([.,!?])`)
)

const (
	phCountBirthdays     = "{count_birthdays}"
	phCountAnniversaries = "{count_anniversaries}"
	phCountTotal         = "{count_total}"
	phDay                = "{day}"
	phNames              = "{names}"
)

var placeholders = []string{phCountBirthdays, phCountAnniversaries, phCountTotal, phDay, phNames}

// DayDigest aggregates the events of one civil day.
type DayDigest struct {
	Label         string   `json:"label"` // "today" or "tomorrow"
	Birthdays     int      `json:"birthdays"`
	Anniversaries int      `json:"anniversaries"`
	Names         []string `json:"names"`
}

func (d DayDigest) Total() int {
	return d.Birthdays + d.Anniversaries
}

// SanitizeTemplate strips stale literal counts so only computed counts reach the reader.
func SanitizeTemplate(s string) string {
	s = staleCount.ReplaceAllString(s, " ")
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func hasPlaceholders(s string) bool {
	for _, ph := range placeholders {
		if strings.Contains(s, ph) {
			return true
		}
	}
	return false
}

// NameSummary renders "(A, B & 3 others)", "(A, B)" or "(A)" from given names.
func NameSummary(names []string) string {
	switch {
	case len(names) == 0:
		return ""
	case len(names) == 1:
		return fmt.Sprintf("(%s)", names[0])
	case len(names) == 2:
		return fmt.Sprintf("(%s, %s)", names[0], names[1])
	default:
		return fmt.Sprintf("(%s, %s & %d others)", names[0], names[1], len(names)-2)
	}
}

// givenName is the first word of a full name.
func givenName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// countPrefix builds "2 birthdays & 1 anniversaries today (A, B & 1 others)."
func countPrefix(d DayDigest, includeNames bool) string {
	var parts []string
	if d.Birthdays > 0 {
		parts = append(parts, fmt.Sprintf("%d birthdays", d.Birthdays))
	}
	if d.Anniversaries > 0 {
		parts = append(parts, fmt.Sprintf("%d anniversaries", d.Anniversaries))
	}

	prefix := strings.Join(parts, " & ") + " " + d.Label
	if includeNames {
		if names := NameSummary(d.Names); names != "" {
			prefix += " " + names
		}
	}
	return prefix + "."
}

// RenderAlertBody builds a notification body from a stored template.
// Stale literal counts are stripped first. Templates with placeholders are
// then filled in directly; plain text gets the computed count prefix
// followed by the sanitized template.
func RenderAlertBody(template string, d DayDigest, includeNames bool) string {
	template = SanitizeTemplate(template)
	if hasPlaceholders(template) {
		names := ""
		if includeNames {
			names = NameSummary(d.Names)
		}
		r := strings.NewReplacer(
			phCountBirthdays, strconv.Itoa(d.Birthdays),
			phCountAnniversaries, strconv.Itoa(d.Anniversaries),
			phCountTotal, strconv.Itoa(d.Total()),
			phDay, d.Label,
			phNames, names,
		)
		out := r.Replace(template)
		out = spaceBeforePunct.ReplaceAllString(out, "$1")
		return strings.TrimSpace(multiSpace.ReplaceAllString(out, " "))
	}

	body := countPrefix(d, includeNames)
	if template != "" {
		body += " " + template
	}
	return body
}

var conferenceGreetings = map[entity.Language]string{
	entity.LanguageHindi:   "कृपया कॉन्फ्रेंस कॉल में शामिल हों।",
	entity.LanguageOdia:    "ଦୟାକରି କନଫରେନ୍ସ କଲରେ ଯୋଗ ଦିଅନ୍ତୁ।",
	entity.LanguageEnglish: "Please join the conference call.",
}

// ConferenceMessage is the SMS sent to every broadcast recipient. Unknown
// languages fall back to Hindi.
func ConferenceMessage(lang entity.Language, dialNumber, accessCode string) string {
	greeting, ok := conferenceGreetings[lang]
	if !ok {
		greeting = conferenceGreetings[entity.LanguageHindi]
	}
	return fmt.Sprintf("%s Dial: %s, Code: %s", greeting, dialNumber, accessCode)
}
