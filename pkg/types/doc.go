// Package types provides shared type definitions for the docrag retrieval engine.
//
// Documents and chunks are owned by the persistence layer and only read during
// retrieval. ScoredResult and RankedList are transient values created and
// discarded within a single search call.
//
// # Ordering
//
// Every RankedList is ordered by SortRanked: score descending, then the most
// recent document upload, then the result identity. Identical inputs therefore
// always produce identical output order.
//
//	list := types.RankedList{
//	    {ChunkID: 7, Score: 2, UploadedAt: t1},
//	    {ChunkID: 3, Score: 2, UploadedAt: t2},
//	}
//	types.SortRanked(list)
//
// # Identity
//
// Results are merged by ResultKey. Chunk-level results are keyed by chunk id;
// document-level results from the filename pass carry ChunkID == 0 and are
// keyed by document id.
//
// # Errors
//
// ErrInvalidInput, ErrCollaboratorUnavailable and ErrInconsistentData form the
// error taxonomy. CollaboratorError matches ErrCollaboratorUnavailable through
// errors.Is.
package types
