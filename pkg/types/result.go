package types

import (
	"sort"
	"time"
)

// Method identifies which retrieval pass produced a result
type Method string

const (
	MethodFilename Method = "filename" // Keyword pass over document filenames
	MethodContent  Method = "content"  // Keyword pass over chunk text and annotations
	MethodVector   Method = "vector"   // Embedding similarity
	MethodFusion   Method = "fusion"   // Merged from more than one method
)

// IsKeyword reports whether m is one of the keyword passes
func (m Method) IsKeyword() bool {
	return m == MethodFilename || m == MethodContent
}

// Source records one list's contribution to a result
type Source struct {
	Method   Method
	Rank     int     // 1-based position in the originating list
	RawScore float64 // Token count or similarity, on the method's own scale
}

// ResultKey is the identity used to merge results. Chunk-level results are
// keyed by chunk; document-level results (ChunkID == 0) by document.
type ResultKey struct {
	ChunkID    int64
	DocumentID int64
}

// Less orders keys: chunk ids ascending, then document ids ascending
func (k ResultKey) Less(o ResultKey) bool {
	if k.ChunkID != o.ChunkID {
		return k.ChunkID < o.ChunkID
	}
	return k.DocumentID < o.DocumentID
}

// ScoredResult is a transient scored reference to a chunk or document
type ScoredResult struct {
	// Identification
	ChunkID    int64 // 0 for document-level results
	DocumentID int64

	// Scoring
	Score  float64
	Method Method

	// Secondary ordering key
	UploadedAt time.Time

	Sources []Source

	// Hydrated by the searcher; nil until resolved
	Document *Document
	Chunk    *Chunk
	Preview  string
}

// Key returns the identity used by fusion
func (r *ScoredResult) Key() ResultKey {
	if r.ChunkID != 0 {
		return ResultKey{ChunkID: r.ChunkID}
	}
	return ResultKey{DocumentID: r.DocumentID}
}

// RankedList is an ordered sequence of results, best first
type RankedList []ScoredResult

// SortRanked sorts by score descending, then most recent upload, then key.
// Every ranked list in the module is ordered with this function.
func SortRanked(list RankedList) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := &list[i], &list[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.After(b.UploadedAt)
		}
		return a.Key().Less(b.Key())
	})
}

// Truncate returns at most limit entries; limit <= 0 keeps everything
func (l RankedList) Truncate(limit int) RankedList {
	if limit <= 0 || limit >= len(l) {
		return l
	}
	return l[:limit]
}

// Keys returns the identity of each entry in order
func (l RankedList) Keys() []ResultKey {
	keys := make([]ResultKey, len(l))
	for i := range l {
		keys[i] = l[i].Key()
	}
	return keys
}

// Field names an independently searchable text field of the store
type Field string

const (
	FieldFilename Field = "filename"
	FieldContent  Field = "content"
)

// Filter narrows a search to document or chunk types. Empty slices match all.
type Filter struct {
	DocTypes    []DocType
	SourceTypes []SourceType
}

// IsEmpty reports whether the filter restricts anything
func (f *Filter) IsEmpty() bool {
	return f == nil || (len(f.DocTypes) == 0 && len(f.SourceTypes) == 0)
}

// SubstringMatch is one row returned by a substring lookup
type SubstringMatch struct {
	DocumentID int64
	ChunkID    int64  // 0 for filename matches
	Text       string // The searchable text the predicate matched
	UploadedAt time.Time
	Hits       int // Distinct patterns found by the store; rows arrive ranked by it
}

// VectorMatch is one row returned by a nearest-neighbour lookup
type VectorMatch struct {
	ChunkID    int64
	DocumentID int64
	Similarity float64 // [0,1], 1.0 is a perfect match
	UploadedAt time.Time
}
