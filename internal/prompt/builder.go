// Package prompt composes generation requests from a system prompt template,
// retrieved context documents, and the user message.
package prompt

import (
	"fmt"
	"strings"

	"github.com/lodgeit-ai/ragchat/internal/domain/document"
)

// DefaultMaxContextBytes bounds the rendered context block. Documents past
// the budget are dropped lowest-relevance first.
const DefaultMaxContextBytes = 32768

// Request is a composed generation request. Built fresh per query and never
// mutated after construction.
type Request struct {
	systemPrompt string
	documents    []document.Document
	userMessage  string
}

// SystemPrompt returns the full system prompt including the context block.
func (r *Request) SystemPrompt() string { return r.systemPrompt }

// ContextDocuments returns the documents that made it into the context block
// after budget truncation, ordered by non-increasing relevance. These are the
// documents to cite as sources.
func (r *Request) ContextDocuments() []document.Document { return r.documents }

// UserMessage returns the raw user question.
func (r *Request) UserMessage() string { return r.userMessage }

// Builder renders generation requests. Stateless; Build is a pure function
// of its inputs.
type Builder struct {
	maxContextBytes int
}

// NewBuilder creates a prompt builder. maxContextBytes <= 0 selects the default.
func NewBuilder(maxContextBytes int) *Builder {
	if maxContextBytes <= 0 {
		maxContextBytes = DefaultMaxContextBytes
	}
	return &Builder{maxContextBytes: maxContextBytes}
}

// Build composes a generation request. Documents are ordered by descending
// relevance (ties keep retrieval order) and the lowest-relevance documents
// are dropped until the rendered context block fits the byte budget. Dropped
// documents are excluded from ContextDocuments so sources match the context
// the model actually saw.
func (b *Builder) Build(template string, docs []document.Document, userMessage string) Request {
	ordered := make([]document.Document, len(docs))
	copy(ordered, docs)
	document.SortByScore(ordered)

	kept, contextBlock := b.renderContext(ordered)

	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteString("\n\n")

	if len(kept) == 0 {
		sb.WriteString("**Note:** No relevant documents were found in the knowledge base for this question.\n\n")
		sb.WriteString("**Instructions:**\n")
		sb.WriteString("1. Acknowledge that no specific documentation was found.\n")
		sb.WriteString("2. Provide general guidance if possible.\n")
		sb.WriteString("3. Suggest that the user try different keywords.\n\n")
	} else {
		sb.WriteString("**Context from knowledge base:**\n")
		sb.WriteString(contextBlock)
		sb.WriteString("\n**Instructions:**\n")
		sb.WriteString("1. Use ONLY the provided context to answer. If the context is insufficient, politely say so.\n")
		sb.WriteString("2. Reference documents by their TITLE with clickable markdown links.\n")
		sb.WriteString("3. All responses must be in properly formatted markdown with proper line breaks.\n")
		sb.WriteString("4. Do NOT invent documents, titles, or images.\n\n")
	}

	sb.WriteString("**User Question:** ")
	sb.WriteString(userMessage)
	sb.WriteString("\n\n**Answer:**")

	return Request{
		systemPrompt: sb.String(),
		documents:    kept,
		userMessage:  userMessage,
	}
}

// renderContext renders documents in relevance order, dropping from the tail
// once the budget is exceeded.
func (b *Builder) renderContext(ordered []document.Document) ([]document.Document, string) {
	var sb strings.Builder
	kept := make([]document.Document, 0, len(ordered))

	for i := range ordered {
		doc := &ordered[i]
		block := renderDocument(len(kept)+1, doc)
		if sb.Len()+len(block) > b.maxContextBytes {
			break
		}
		sb.WriteString(block)
		kept = append(kept, ordered[i])
	}

	return kept, sb.String()
}

func renderDocument(n int, doc *document.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Document %d - %s:**\n", n, doc.Title())
	fmt.Fprintf(&sb, "- **Title:** %s\n", doc.Title())
	fmt.Fprintf(&sb, "- **Hierarchy:** %s\n", doc.Hierarchy())
	fmt.Fprintf(&sb, "- **Content:** %s\n", doc.Content())
	if doc.URL() != "" {
		fmt.Fprintf(&sb, "- **URL:** %s\n", doc.URL())
	}
	sb.WriteString("\n")
	return sb.String()
}
