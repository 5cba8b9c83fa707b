// Package storage provides SQLite-based persistence for documents, chunks and
// their embeddings, and serves as both the document store and the vector index
// for retrieval.
//
// # Database Schema
//
// Tables:
//   - documents: uploaded files (filename, doc_type, upload_date)
//   - chunks: retrievable sections with title, text and keyword annotation
//   - embeddings: little-endian float32 vectors keyed by chunk
//   - search_history: one row per recorded search
//
// Migrations are versioned with semver and applied on open.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("docrag.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	matches, err := store.FindBySubstring(ctx, types.FieldFilename, []string{"N706"}, nil, 1000)
//
// # Transactions
//
// Writers that must be atomic go through BeginTx:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.CreateDocument(ctx, doc); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Substring Search
//
// FindBySubstring ORs every pattern into a single LIKE predicate, escaping
// wildcards. Case folding in SQL is ASCII only.
//
// # Vector Search
//
// Builds tagged sqlite_vec use mattn/go-sqlite3 and compute cosine distance in
// SQL. Default builds use modernc.org/sqlite and score vectors in Go.
// Similarity is reported on [0,1] as (1+cos)/2.
package storage
