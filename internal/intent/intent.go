// Package intent assigns a coarse topic label to a student message using an
// ordered list of regular-expression rules.
package intent

import (
	"regexp"
	"strings"
)

// Intent labels
const (
	Greeting   = "greeting"
	Admissions = "admissions"
	Fees       = "fees"
	Hostel     = "hostel"
	Academic   = "academic"
	Campus     = "campus"
	Contacts   = "contacts"
	Leadership = "leadership"
	General    = "general"
)

// Confidence values are fixed per outcome, not probabilities
const (
	MatchedConfidence = 0.9
	GeneralConfidence = 0.6
)

// Classification is the classifier output
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type rule struct {
	intent   string
	patterns []*regexp.Regexp
}

// Rules are tried in order; the first rule with a matching pattern wins.
var rules = []rule{
	{Greeting, compile(
		`^(hi|hello|hey|good morning|good afternoon|good evening)\b`,
		`^(how are you|what's up|sup)\b`,
	)},
	{Admissions, compile(
		`\b(admission|admissions|jamb|utme|post-utme|waec|neco|requirements|clearance|defer|deferment)\b`,
	)},
	{Fees, compile(
		`\b(fee|fees|payment|pay|tuition|remita|rrr|receipt|installment|bursary)\b`,
	)},
	{Hostel, compile(
		`\b(hostel|hostels|accommodation|allocation|hall)\b`,
	)},
	{Academic, compile(
		`\b(course|courses|registration|register|grade|grades|grading|result|results|transcript|cgpa|gpa)\b`,
		`\b(exam|examination|semester|academic|lecture|timetable)\b`,
	)},
	{Campus, compile(
		`\b(campus|location|located|address|library|facility|facilities|sports|club|clubs|id card)\b`,
	)},
	{Contacts, compile(
		`\b(contact|phone|email|help desk|support|ict|emergency|security)\b`,
	)},
	{Leadership, compile(
		`\b(vice[- ]chancellor|vc|deputy|registrar|management|leadership)\b`,
	)},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Classify returns the first matching intent, or general.
func Classify(message string) Classification {
	normalized := strings.TrimSpace(message)
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(normalized) {
				return Classification{Intent: r.intent, Confidence: MatchedConfidence}
			}
		}
	}
	return Classification{Intent: General, Confidence: GeneralConfidence}
}

var (
	courseCodePattern = regexp.MustCompile(`\b[A-Z]{3}\s?\d{3}\b`)
	levelPattern      = regexp.MustCompile(`(?i)\b\d{3}\s?level\b`)
	facultyPattern    = regexp.MustCompile(`(?i)\bfaculty\s+of\s+\w+`)
)

// ExtractEntities pulls course codes, study levels and faculty mentions out of
// a message. Keys are omitted when nothing was found.
func ExtractEntities(message string) map[string][]string {
	entities := make(map[string][]string)
	if m := courseCodePattern.FindAllString(message, -1); len(m) > 0 {
		entities["course_code"] = m
	}
	if m := levelPattern.FindAllString(message, -1); len(m) > 0 {
		entities["level"] = m
	}
	if m := facultyPattern.FindAllString(message, -1); len(m) > 0 {
		entities["faculty"] = m
	}
	return entities
}
