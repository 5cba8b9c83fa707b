package types

import (
	"errors"
	"strings"
	"time"
)

// DocType classifies a document. The set is open; filters compare verbatim.
type DocType string

const (
	DocKnowledge       DocType = "knowledge"
	DocTraining        DocType = "training"
	DocProcedure       DocType = "procedure"
	DocTroubleshooting DocType = "troubleshooting"
)

// SourceType describes which part of a document a chunk was cut from
type SourceType string

const (
	SourceChapter SourceType = "chapter"
	SourceStep    SourceType = "step"
	SourceField   SourceType = "field"
	SourceSection SourceType = "section"
)

// Document is a persisted, uploaded file. Retrieval only reads it.
type Document struct {
	ID           int64
	Filename     string
	DocType      DocType
	UploadedAt   time.Time
	AnalysisMode string
	ModelUsed    string
}

// Chunk is a retrievable sub-unit of a document
type Chunk struct {
	// Identification
	ID         int64
	DocumentID int64

	// Content
	SourceType  SourceType
	SourceTitle string
	Content     string
	Keywords    string // Annotation, comma or 、 separated

	// Optional vector; nil when the chunk was never embedded
	Embedding []float32

	CreatedAt time.Time
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if c.DocumentID <= 0 {
		return errors.New("chunk must belong to a document")
	}
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// KeywordList splits the keyword annotation into trimmed, non-empty terms
func (c *Chunk) KeywordList() []string {
	return SplitKeywords(c.Keywords)
}

// SplitKeywords splits an annotation string on ',' and '、'
func SplitKeywords(annotation string) []string {
	if annotation == "" {
		return nil
	}
	parts := strings.FieldsFunc(annotation, func(r rune) bool {
		return r == ',' || r == '、' || r == '，'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SearchableText returns the text the content keyword pass matches against
func (c *Chunk) SearchableText() string {
	var b strings.Builder
	b.WriteString(c.SourceTitle)
	b.WriteByte('\n')
	b.WriteString(c.Content)
	b.WriteByte('\n')
	b.WriteString(c.Keywords)
	return b.String()
}
