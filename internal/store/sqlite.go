package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"github.com/cqlabs/cqs/internal/chunk"
	cqserrors "github.com/cqlabs/cqs/internal/errors"
)

// SQLiteStore implements Store over a single .cq/index.db file using the
// pure-Go modernc.org/sqlite driver. WAL mode plus a single-connection pool
// gives it safe concurrent readers and one writer, matching the teacher's
// SQLite index pattern.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	nameIdx *NameIndex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the index database at path,
// applying pending schema migrations, plus a sibling bleve name index used
// as SearchByName's fuzzy fallback. path == ":memory:"
// opens private in-memory stores, used by tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	namePath := ""
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, cqserrors.New(cqserrors.ErrCodeFilePermission, "create index directory", err)
			}
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
		namePath = path + ".names.bleve"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeCorruptIndex, "open index database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = OFF",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cqserrors.New(cqserrors.ErrCodeCorruptIndex, "set pragma", err)
		}
	}

	if err := openSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	nameIdx, err := NewNameIndex(namePath)
	if err != nil {
		_ = db.Close()
		return nil, cqserrors.New(cqserrors.ErrCodeCorruptIndex, "open name index", err)
	}

	return &SQLiteStore{db: db, path: path, nameIdx: nameIdx}, nil
}

func (s *SQLiteStore) Close() error {
	_ = s.nameIdx.Close()
	return s.db.Close()
}

// packEmbedding encodes a float32 vector as packed little-endian bytes, the
// wire format spec section 4.2 mandates for the chunks.embedding column.
func packEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackEmbedding(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// UpsertChunksBatch implements the upsert contract from spec section 4.2:
// delete-then-insert chunks by id, then delete-then-insert the call/type
// edges belonging to every file touched by the batch, all in one
// transaction so a reader never observes a mix of old and new rows.
func (s *SQLiteStore) UpsertChunksBatch(ctx context.Context, chunks []StoredChunk, calls []chunk.CallEdge, types []chunk.TypeEdge) error {
	if len(chunks) == 0 && len(calls) == 0 && len(types) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	files := make(map[string]struct{})

	delChunk, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE id = ?`)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "prepare chunk delete", err)
	}
	defer delChunk.Close()

	insChunk, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, file, language, chunk_type, name, signature, content, doc,
			line_start, line_end, content_hash, parent_id, window_idx, embedding, mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "prepare chunk insert", err)
	}
	defer insChunk.Close()

	for _, sc := range chunks {
		c := sc.Chunk
		files[c.FilePath] = struct{}{}

		if _, err := delChunk.ExecContext(ctx, c.ID); err != nil {
			return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "delete existing chunk", err)
		}

		var windowIdx any
		if c.WindowIdx != nil {
			windowIdx = *c.WindowIdx
		}
		var parentID any
		if c.ParentID != "" {
			parentID = c.ParentID
		}
		var embBytes []byte
		if len(sc.Embedding) > 0 {
			embBytes = packEmbedding(sc.Embedding)
		}

		_, err := insChunk.ExecContext(ctx, c.ID, c.FilePath, c.Language, string(c.Kind), c.Name,
			c.Signature, c.Source, nullableString(c.DocString), c.StartLine, c.EndLine,
			c.ContentHash[:], parentID, windowIdx, embBytes, sc.Mtime.Unix())
		if err != nil {
			return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "insert chunk", err)
		}
	}

	for f := range callFilesOf(calls) {
		files[f] = struct{}{}
	}

	for file := range files {
		if _, err := tx.ExecContext(ctx, `DELETE FROM function_calls WHERE caller_file = ?`, file); err != nil {
			return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "delete stale call edges", err)
		}
	}

	if len(chunks) > 0 {
		ids := make([]string, 0, len(chunks))
		for _, sc := range chunks {
			ids = append(ids, sc.Chunk.ID)
		}
		if err := deleteTypeEdgesForChunks(ctx, tx, ids); err != nil {
			return err
		}
	}

	insCall, err := tx.PrepareContext(ctx, `
		INSERT INTO function_calls (caller_file, caller_name, caller_line, callee_name, call_line)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "prepare call insert", err)
	}
	defer insCall.Close()

	for _, e := range calls {
		if _, err := insCall.ExecContext(ctx, e.CallerFile, e.CallerName, e.CallerLine, e.CalleeName, e.CallSiteLine); err != nil {
			return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "insert call edge", err)
		}
	}

	insType, err := tx.PrepareContext(ctx, `
		INSERT INTO type_edges (chunk_id, type_name, edge_kind) VALUES (?, ?, ?)
	`)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "prepare type edge insert", err)
	}
	defer insType.Close()

	for _, e := range types {
		if _, err := insType.ExecContext(ctx, e.ChunkID, e.TypeName, string(e.Kind)); err != nil {
			return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "insert type edge", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "commit upsert", err)
	}

	if len(chunks) > 0 {
		nameDocs := make(map[string]nameDoc, len(chunks))
		for _, sc := range chunks {
			nameDocs[sc.Chunk.ID] = nameDoc{Name: sc.Chunk.Name, Signature: sc.Chunk.Signature}
		}
		if err := s.nameIdx.UpsertBatch(nameDocs); err != nil {
			return cqserrors.New(cqserrors.ErrCodeInternal, "update name index", err)
		}
	}
	return nil
}

func callFilesOf(calls []chunk.CallEdge) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range calls {
		out[c.CallerFile] = struct{}{}
	}
	return out
}

func deleteTypeEdgesForChunks(ctx context.Context, tx *sql.Tx, chunkIDs []string) error {
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM type_edges WHERE chunk_id = ?`)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "prepare type edge delete", err)
	}
	defer stmt.Close()
	for _, id := range chunkIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "delete stale type edges", err)
		}
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DeleteChunksByFile removes every chunk and edge belonging to file.
func (s *SQLiteStore) DeleteChunksByFile(ctx context.Context, file string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE file = ?`, file)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "select chunk ids", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "scan chunk id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file = ?`, file); err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "delete chunks", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM function_calls WHERE caller_file = ?`, file); err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "delete call edges", err)
	}
	if err := deleteTypeEdgesForChunks(ctx, tx, ids); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "commit delete", err)
	}

	if s.nameIdx != nil {
		if err := s.nameIdx.Delete(ids); err != nil {
			return cqserrors.New(cqserrors.ErrCodeInternal, "update name index", err)
		}
	}
	return nil
}

func scanChunk(row interface {
	Scan(dest ...any) error
}) (*chunk.Chunk, time.Time, []float32, error) {
	var c chunk.Chunk
	var kind, doc string
	var docNull sql.NullString
	var parentID sql.NullString
	var windowIdx sql.NullInt64
	var hash []byte
	var emb []byte
	var mtimeUnix int64

	err := row.Scan(&c.ID, &c.FilePath, &c.Language, &kind, &c.Name, &c.Signature, &c.Source,
		&docNull, &c.StartLine, &c.EndLine, &hash, &parentID, &windowIdx, &emb, &mtimeUnix)
	if err != nil {
		return nil, time.Time{}, nil, err
	}

	c.Kind = chunk.Kind(kind)
	if docNull.Valid {
		doc = docNull.String
	}
	c.DocString = doc
	copy(c.ContentHash[:], hash)
	if parentID.Valid {
		c.ParentID = parentID.String
	}
	if windowIdx.Valid {
		idx := int(windowIdx.Int64)
		c.WindowIdx = &idx
	}

	return &c, time.Unix(mtimeUnix, 0), unpackEmbedding(emb), nil
}

const chunkColumns = `id, file, language, chunk_type, name, signature, content, doc,
	line_start, line_end, content_hash, parent_id, window_idx, embedding, mtime`

func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	c, _, _, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get chunk", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetChunksByFile(ctx context.Context, file string) ([]*chunk.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE file = ? ORDER BY line_start`, file)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get chunks by file", err)
	}
	defer rows.Close()

	var out []*chunk.Chunk
	for rows.Next() {
		c, _, _, err := scanChunk(rows)
		if err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get all embeddings", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var emb []byte
		if err := rows.Scan(&id, &emb); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan embedding", err)
		}
		out[id] = unpackEmbedding(emb)
	}
	return out, rows.Err()
}

// SearchByName does a substring match on name, ordered by
// (exact-match-first, shorter-name-first) per spec section 4.2. When the
// substring scan finds nothing, it falls back to the bleve name index's
// camelCase/snake_case-aware tokenization for a fuzzy candidate set, scored
// by bleve's own ranking rather than the SQL ordering above.
func (s *SQLiteStore) SearchByName(ctx context.Context, query string, limit int) ([]ChunkSummary, error) {
	out, err := s.searchByNameExact(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 || s.nameIdx == nil {
		return out, nil
	}

	ids, err := s.nameIdx.Search(ctx, query, limit)
	if err != nil || len(ids) == 0 {
		return out, nil
	}
	return s.summariesByIDOrdered(ctx, ids)
}

func (s *SQLiteStore) searchByNameExact(ctx context.Context, query string, limit int) ([]ChunkSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, language, chunk_type, name, signature, line_start, line_end
		FROM chunks
		WHERE name LIKE '%' || ? || '%'
		ORDER BY (name = ?) DESC, LENGTH(name) ASC, name ASC
		LIMIT ?
	`, query, query, limit)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "search by name", err)
	}
	defer rows.Close()

	var out []ChunkSummary
	for rows.Next() {
		var sum ChunkSummary
		var kind string
		if err := rows.Scan(&sum.ID, &sum.FilePath, &sum.Language, &kind, &sum.Name, &sum.Signature, &sum.StartLine, &sum.EndLine); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan name search row", err)
		}
		sum.Kind = chunk.Kind(kind)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// summariesByIDOrdered loads chunk summaries for ids, preserving ids' order
// (the caller's relevance ranking) rather than the order SQL returns them in.
func (s *SQLiteStore) summariesByIDOrdered(ctx context.Context, ids []string) ([]ChunkSummary, error) {
	byID := make(map[string]ChunkSummary, len(ids))
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	q := `SELECT id, file, language, chunk_type, name, signature, line_start, line_end
		FROM chunks WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "load name index hits", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sum ChunkSummary
		var kind string
		if err := rows.Scan(&sum.ID, &sum.FilePath, &sum.Language, &kind, &sum.Name, &sum.Signature, &sum.StartLine, &sum.EndLine); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan name index hit", err)
		}
		sum.Kind = chunk.Kind(kind)
		byID[sum.ID] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "load name index hits", err)
	}

	out := make([]ChunkSummary, 0, len(ids))
	for _, id := range ids {
		if sum, ok := byID[id]; ok {
			out = append(out, sum)
		}
	}
	return out, nil
}

// GetCallersFull reads the function_calls rows for a callee name, returning
// every caller edge regardless of whether the caller's body was windowed.
func (s *SQLiteStore) GetCallersFull(ctx context.Context, name string) ([]CallEdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT caller_file, caller_name, caller_line, callee_name, call_line
		FROM function_calls WHERE callee_name = ?
		ORDER BY caller_file, caller_line
	`, name)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get callers", err)
	}
	return scanCallEdges(rows)
}

// GetCalleesFull reads the function_calls rows for a caller name (and,
// optionally, caller file), returning every outgoing call edge.
func (s *SQLiteStore) GetCalleesFull(ctx context.Context, name, fileHint string) ([]CallEdgeRecord, error) {
	var rows *sql.Rows
	var err error
	if fileHint != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT caller_file, caller_name, caller_line, callee_name, call_line
			FROM function_calls WHERE caller_name = ? AND caller_file = ?
			ORDER BY call_line
		`, name, fileHint)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT caller_file, caller_name, caller_line, callee_name, call_line
			FROM function_calls WHERE caller_name = ?
			ORDER BY caller_file, call_line
		`, name)
	}
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get callees", err)
	}
	return scanCallEdges(rows)
}

func scanCallEdges(rows *sql.Rows) ([]CallEdgeRecord, error) {
	defer rows.Close()
	var out []CallEdgeRecord
	for rows.Next() {
		var r CallEdgeRecord
		if err := rows.Scan(&r.CallerFile, &r.CallerName, &r.CallerLine, &r.CalleeName, &r.CallLine); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan call edge", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTypeUsers(ctx context.Context, typeName string) ([]chunk.TypeEdge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, type_name, edge_kind FROM type_edges WHERE type_name = ?`, typeName)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get type users", err)
	}
	return scanTypeEdges(rows)
}

func (s *SQLiteStore) GetTypesUsedBy(ctx context.Context, chunkName string) ([]chunk.TypeEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type_edges.chunk_id, type_edges.type_name, type_edges.edge_kind
		FROM type_edges JOIN chunks ON chunks.id = type_edges.chunk_id
		WHERE chunks.name = ?
	`, chunkName)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get types used by", err)
	}
	return scanTypeEdges(rows)
}

func scanTypeEdges(rows *sql.Rows) ([]chunk.TypeEdge, error) {
	defer rows.Close()
	var out []chunk.TypeEdge
	for rows.Next() {
		var e chunk.TypeEdge
		var kind string
		if err := rows.Scan(&e.ChunkID, &e.TypeName, &kind); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan type edge", err)
		}
		e.Kind = chunk.TypeEdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindTestChunks applies each language's IsTestName rule to every stored
// chunk. The rule is language-defined, so detection happens in Go rather
// than SQL.
func (s *SQLiteStore) FindTestChunks(ctx context.Context) ([]ChunkSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, file, language, chunk_type, name, signature, line_start, line_end FROM chunks`)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "find test chunks", err)
	}
	defer rows.Close()

	registry := chunk.DefaultRegistry()
	var out []ChunkSummary
	for rows.Next() {
		var sum ChunkSummary
		var kind string
		if err := rows.Scan(&sum.ID, &sum.FilePath, &sum.Language, &kind, &sum.Name, &sum.Signature, &sum.StartLine, &sum.EndLine); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan chunk row", err)
		}
		sum.Kind = chunk.Kind(kind)
		def, ok := registry.GetByName(sum.Language)
		if !ok || def.IsTestName == nil {
			continue
		}
		if def.IsTestName(sum.Name) {
			out = append(out, sum)
		}
	}
	return out, rows.Err()
}

// FindDeadCode returns chunks whose name never appears as a callee and
// which aren't tests, filtering out exported names unless includePub.
func (s *SQLiteStore) FindDeadCode(ctx context.Context, includePub bool) ([]ChunkSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, language, chunk_type, name, signature, line_start, line_end
		FROM chunks
		WHERE name NOT IN (SELECT DISTINCT callee_name FROM function_calls)
	`)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "find dead code", err)
	}
	defer rows.Close()

	registry := chunk.DefaultRegistry()
	var out []ChunkSummary
	for rows.Next() {
		var sum ChunkSummary
		var kind string
		if err := rows.Scan(&sum.ID, &sum.FilePath, &sum.Language, &kind, &sum.Name, &sum.Signature, &sum.StartLine, &sum.EndLine); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan chunk row", err)
		}
		sum.Kind = chunk.Kind(kind)

		def, ok := registry.GetByName(sum.Language)
		if ok && def.IsTestName != nil && def.IsTestName(sum.Name) {
			continue
		}
		if !includePub && ok && def.IsExported != nil && def.IsExported(sum.Name, sum.Signature) {
			continue
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// CountStaleFiles compares current's mtimes to the stored chunks' mtimes,
// counting files whose on-disk mtime is newer than all of their chunks',
// files in current with no stored chunks, and stored files missing from
// current.
func (s *SQLiteStore) CountStaleFiles(ctx context.Context, current map[string]time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file, MAX(mtime) FROM chunks GROUP BY file`)
	if err != nil {
		return 0, cqserrors.New(cqserrors.ErrCodeInternal, "count stale files", err)
	}
	defer rows.Close()

	stored := make(map[string]int64)
	for rows.Next() {
		var file string
		var mtime int64
		if err := rows.Scan(&file, &mtime); err != nil {
			return 0, cqserrors.New(cqserrors.ErrCodeInternal, "scan stale file row", err)
		}
		stored[file] = mtime
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	stale := 0
	for file, mtime := range current {
		if storedMtime, ok := stored[file]; !ok || mtime.Unix() > storedMtime {
			stale++
		}
	}
	for file := range stored {
		if _, ok := current[file]; !ok {
			stale++ // file vanished
		}
	}
	return stale, nil
}

// ListFiles returns every distinct file path with at least one stored
// chunk.
func (s *SQLiteStore) ListFiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT file FROM chunks`)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "list files", err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan file row", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CheckOriginsStale reports whether any of origins no longer exists under
// root, used to detect a reference store whose source tree moved.
func (s *SQLiteStore) CheckOriginsStale(ctx context.Context, origins []string, root string) (bool, error) {
	for _, o := range origins {
		p := o
		if root != "" {
			p = filepath.Join(root, o)
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return true, nil
		}
	}
	return false, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount); err != nil {
		return st, cqserrors.New(cqserrors.ErrCodeInternal, "count chunks", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT file) FROM chunks`).Scan(&st.FileCount); err != nil {
		return st, cqserrors.New(cqserrors.ErrCodeInternal, "count files", err)
	}

	if v, ok, err := s.GetMetadata(ctx, "schema_version"); err == nil && ok {
		fmt.Sscanf(v, "%d", &st.SchemaVersion)
	}
	if v, ok, err := s.GetMetadata(ctx, "model_name"); err == nil && ok {
		st.ModelName = v
	}
	if v, ok, err := s.GetMetadata(ctx, "last_indexed"); err == nil && ok {
		if unix, err := parseUnix(v); err == nil {
			st.LastIndexed = time.Unix(unix, 0)
		}
	}
	return st, nil
}

func parseUnix(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func (s *SQLiteStore) ChunkCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, cqserrors.New(cqserrors.ErrCodeInternal, "chunk count", err)
	}
	return n, nil
}

// GetCallGraph builds the two name-keyed adjacency maps every graph
// operation consumes, in one pass over function_calls.
func (s *SQLiteStore) GetCallGraph(ctx context.Context) (*CallGraph, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT caller_name, callee_name FROM function_calls`)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get call graph", err)
	}
	defer rows.Close()

	g := &CallGraph{Forward: make(map[string][]string), Reverse: make(map[string][]string)}
	for rows.Next() {
		var caller, callee string
		if err := rows.Scan(&caller, &callee); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan call graph edge", err)
		}
		g.Forward[caller] = append(g.Forward[caller], callee)
		g.Reverse[callee] = append(g.Reverse[callee], caller)
	}
	for _, adj := range [](map[string][]string){g.Forward, g.Reverse} {
		for k := range adj {
			sort.Strings(adj[k])
		}
	}
	return g, rows.Err()
}

func (s *SQLiteStore) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, cqserrors.New(cqserrors.ErrCodeInternal, "get metadata", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "set metadata", err)
	}
	return nil
}

func (s *SQLiteStore) SaveNote(ctx context.Context, note *Note) error {
	mentionsJSON, err := json.Marshal(note.Mentions)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeInvalidInput, "marshal note mentions", err)
	}
	var embBytes []byte
	if len(note.Embedding) > 0 {
		embBytes = packEmbedding(note.Embedding)
	}

	if note.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO notes (text, sentiment, mentions, embedding) VALUES (?, ?, ?, ?)
		`, note.Text, note.Sentiment, string(mentionsJSON), embBytes)
		if err != nil {
			return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "insert note", err)
		}
		id, err := res.LastInsertId()
		if err == nil {
			note.ID = id
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE notes SET text = ?, sentiment = ?, mentions = ?, embedding = ? WHERE id = ?
	`, note.Text, note.Sentiment, string(mentionsJSON), embBytes, note.ID)
	if err != nil {
		return cqserrors.New(cqserrors.ErrCodeTransactionFailed, "update note", err)
	}
	return nil
}

func (s *SQLiteStore) GetNotes(ctx context.Context) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, sentiment, mentions, embedding FROM notes`)
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "get notes", err)
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n := &Note{}
		var mentionsJSON string
		var emb []byte
		if err := rows.Scan(&n.ID, &n.Text, &n.Sentiment, &mentionsJSON, &emb); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "scan note", err)
		}
		if err := json.Unmarshal([]byte(mentionsJSON), &n.Mentions); err != nil {
			return nil, cqserrors.New(cqserrors.ErrCodeInternal, "unmarshal note mentions", err)
		}
		n.Embedding = unpackEmbedding(emb)
		out = append(out, n)
	}
	return out, rows.Err()
}
