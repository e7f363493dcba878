package store

import (
	"database/sql"
	"fmt"
	"strconv"

	cqserrors "github.com/cqlabs/cqs/internal/errors"
)

// schemaDDL creates every table and index from a blank database. Column
// layout follows spec section 4.2 exactly.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	file          TEXT NOT NULL,
	language      TEXT NOT NULL,
	chunk_type    TEXT NOT NULL,
	name          TEXT NOT NULL,
	signature     TEXT NOT NULL,
	content       TEXT NOT NULL,
	doc           TEXT,
	line_start    INTEGER NOT NULL,
	line_end      INTEGER NOT NULL,
	content_hash  BLOB NOT NULL,
	parent_id     TEXT,
	window_idx    INTEGER,
	embedding     BLOB,
	mtime         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_name ON chunks(name);
CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file);
CREATE INDEX IF NOT EXISTS idx_chunks_type_lang ON chunks(chunk_type, language);

CREATE TABLE IF NOT EXISTS function_calls (
	caller_file TEXT NOT NULL,
	caller_name TEXT NOT NULL,
	caller_line INTEGER NOT NULL,
	callee_name TEXT NOT NULL,
	call_line   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calls_callee ON function_calls(callee_name);
CREATE INDEX IF NOT EXISTS idx_calls_caller ON function_calls(caller_file, caller_name);

CREATE TABLE IF NOT EXISTS type_edges (
	chunk_id  TEXT NOT NULL,
	type_name TEXT NOT NULL,
	edge_kind TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_type_edges_chunk ON type_edges(chunk_id);
CREATE INDEX IF NOT EXISTS idx_type_edges_type ON type_edges(type_name);

CREATE TABLE IF NOT EXISTS notes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	text      TEXT NOT NULL,
	sentiment REAL NOT NULL DEFAULT 0,
	mentions  TEXT NOT NULL DEFAULT '[]',
	embedding BLOB
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// openSchema opens (creating if needed) the schema and applies any pending
// migration. Mirrors the linear migration chain: stored version is read
// from metadata, compared against CurrentSchemaVersion, and migrate steps
// run inside one transaction.
func openSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return cqserrors.New(cqserrors.ErrCodeCorruptIndex, "create schema", err)
	}

	var versionStr string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&versionStr)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec(`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(CurrentSchemaVersion))
		if err != nil {
			return cqserrors.New(cqserrors.ErrCodeCorruptIndex, "seed schema_version", err)
		}
		return nil
	case err != nil:
		return cqserrors.New(cqserrors.ErrCodeCorruptIndex, "read schema_version", err)
	}

	stored, err := strconv.Atoi(versionStr)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeCorruptIndex, "parse schema_version", err)
	}

	return migrate(db, stored, CurrentSchemaVersion)
}

// migrate runs every step from -> to inside one transaction, then writes
// the new schema_version. Downward migrations fail immediately; this chain
// is linear and forward-only by design.
func migrate(db *sql.DB, from, to int) error {
	if from > to {
		return cqserrors.New(cqserrors.ErrCodeMigrationNotSupported,
			fmt.Sprintf("stored schema version %d is newer than supported version %d", from, to), nil).
			WithSuggestion("upgrade cqs or rebuild the index with 'cqs index --force'")
	}
	if from == to {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "begin migration", err)
	}
	defer func() { _ = tx.Rollback() }()

	for v := from; v < to; v++ {
		if err := runMigrationStep(tx, v, v+1); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`UPDATE metadata SET value = ? WHERE key = 'schema_version'`, strconv.Itoa(to)); err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "write schema_version", err)
	}

	if err := tx.Commit(); err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "commit migration", err)
	}
	return nil
}

// runMigrationStep applies one version bump. No steps exist yet; the first
// schema change after v1 adds a case here.
func runMigrationStep(tx *sql.Tx, from, to int) error {
	switch {
	// Future migrations land here, e.g.:
	// case from == 1 && to == 2:
	//     _, err := tx.Exec(`ALTER TABLE chunks ADD COLUMN ...`)
	//     return err
	default:
		return cqserrors.New(cqserrors.ErrCodeMigrationNotSupported,
			fmt.Sprintf("no migration from schema version %d to %d", from, to), nil)
	}
}
