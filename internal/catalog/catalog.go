// Package catalog maps classification labels to search indexes and their
// prompt templates. The mapping is static; exhaustiveness over the label set
// is validated once at startup so a label/catalog mismatch fails fast instead
// of surfacing mid-request.
package catalog

import (
	"fmt"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/domain/label"
)

// Entry is the resolved routing target for a label.
type Entry struct {
	index    string
	template string
}

// Index returns the search index identifier.
func (e Entry) Index() string { return e.index }

// Template returns the index-specific system prompt template.
func (e Entry) Template() string { return e.template }

// Catalog is the label-to-index lookup table.
type Catalog struct {
	entries      map[label.Label]Entry
	defaultLabel label.Label
}

// New builds the catalog and validates the exhaustiveness invariant:
// every recognized label has exactly one entry with a non-empty index and
// template, and the default label is itself recognized.
func New(defaultLabel label.Label) (*Catalog, error) {
	if !defaultLabel.IsValid() {
		return nil, fmt.Errorf("%w: default label %q is not recognized", domain.ErrCatalogInconsistency, defaultLabel)
	}

	entries := map[label.Label]Entry{
		label.HelpGuide: {index: "lodgeit-help-guides", template: helpGuidePrompt},
		label.Pricing:   {index: "lodgeit-pricing", template: pricingPrompt},
		label.TaxGenii:  {index: "ato_complete_data2", template: taxGeniiPrompt},
		label.Website:   {index: "lodgeit-website", template: websitePrompt},
	}

	for _, l := range label.All() {
		e, ok := entries[l]
		if !ok {
			return nil, fmt.Errorf("%w: no entry for label %q", domain.ErrCatalogInconsistency, l)
		}
		if e.index == "" || e.template == "" {
			return nil, fmt.Errorf("%w: empty entry for label %q", domain.ErrCatalogInconsistency, l)
		}
	}
	if len(entries) != len(label.All()) {
		return nil, fmt.Errorf("%w: %d entries for %d labels", domain.ErrCatalogInconsistency, len(entries), len(label.All()))
	}

	return &Catalog{entries: entries, defaultLabel: defaultLabel}, nil
}

// MustNew builds the catalog or panics. For use in tests and main.
func MustNew(defaultLabel label.Label) *Catalog {
	c, err := New(defaultLabel)
	if err != nil {
		panic(err)
	}
	return c
}

// Resolve maps a label to its routing entry. A miss here means the startup
// invariant was bypassed and is reported as a catalog inconsistency.
func (c *Catalog) Resolve(l label.Label) (Entry, error) {
	e, ok := c.entries[l]
	if !ok {
		return Entry{}, fmt.Errorf("%w: no entry for label %q", domain.ErrCatalogInconsistency, l)
	}
	return e, nil
}

// DefaultLabel returns the configured fallback label.
func (c *Catalog) DefaultLabel() label.Label { return c.defaultLabel }
