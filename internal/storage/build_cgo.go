//go:build sqlite_vec
// +build sqlite_vec

package storage

// This file is compiled when building with CGO and the sqlite_vec tag.
// It enables the sqlite-vec extension for fast vector similarity search.
//
// Build command:
//   CGO_ENABLED=1 go build -tags sqlite_vec ./...
//
// The sqlite-vec extension provides:
//   - vec_distance_cosine, used by Nearest
//   - Recommended for large chunk tables
//
// Driver used: github.com/mattn/go-sqlite3

import (
	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(foldFunction, fold, true)
		},
	})
}

const (
	// DriverName is the SQLite driver to use; sqlite3 with the fold function registered
	DriverName = "sqlite3_docrag"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
