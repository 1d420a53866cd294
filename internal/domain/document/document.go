// Package document defines the retrieved knowledge-base document value object.
package document

import "sort"

// Document is a single retrieved knowledge-base document.
// Read-only after construction.
type Document struct {
	title     string
	hierarchy string
	content   string
	url       string
	score     float64
}

// New creates a retrieved document.
func New(title, hierarchy, content, url string, score float64) Document {
	return Document{
		title:     title,
		hierarchy: hierarchy,
		content:   content,
		url:       url,
		score:     score,
	}
}

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Hierarchy returns the taxonomy path of the document.
func (d *Document) Hierarchy() string { return d.hierarchy }

// Content returns the document body.
func (d *Document) Content() string { return d.content }

// URL returns the source URL, possibly empty.
func (d *Document) URL() string { return d.url }

// Score returns the relevance score.
func (d *Document) Score() float64 { return d.score }

// SortByScore orders docs by non-increasing relevance score.
// The sort is stable: ties keep their original retrieval order.
func SortByScore(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].score > docs[j].score
	})
}
