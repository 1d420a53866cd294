// Package label defines the closed set of knowledge-domain classification labels.
package label

import "strings"

// Label is a knowledge-domain classification label.
type Label string

// The closed label set. Adding a label requires a matching catalog entry,
// enforced by catalog.New at startup.
const (
	HelpGuide Label = "helpguide"
	Pricing   Label = "pricing"
	TaxGenii  Label = "taxgenii"
	Website   Label = "website"
)

// Default is the fallback label when classification fails or is unrecognized.
const Default = HelpGuide

// All returns every recognized label in a stable order.
func All() []Label {
	return []Label{HelpGuide, Pricing, TaxGenii, Website}
}

// IsValid checks if the label is one of the recognized values.
func (l Label) IsValid() bool {
	switch l {
	case HelpGuide, Pricing, TaxGenii, Website:
		return true
	}
	return false
}

func (l Label) String() string { return string(l) }

// Parse normalizes a raw string into a Label. Returns false for anything
// outside the closed set; callers decide whether that means fallback or 400.
func Parse(s string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if l.IsValid() {
		return l, true
	}
	return "", false
}
