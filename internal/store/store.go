// Package store persists whole database snapshots to SQLite, so an
// indexer can restart without recrawling the project. Snapshots are
// immutable and identified by UUID; the arena indices and file ids of
// the live tree survive the round trip byte for byte.
package store

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/codequarry/symdb/internal/tokens"
)

type Store struct {
	db *sql.DB
}

type Snapshot struct {
	ID         string
	CreatedAt  time.Time
	FileCount  int
	TokenCount int
}

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, err
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := GetSchema()

	var clean []string
	for _, line := range strings.Split(schema, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
			clean = append(clean, line)
		}
	}
	if _, err := s.db.Exec(strings.Join(clean, "\n")); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	_, _ = s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Export writes the tree as a new snapshot and returns its id. The
// tree is locked for the duration, so the snapshot is consistent.
func (s *Store) Export(tree *tokens.Tree) (string, error) {
	tree.Lock()
	defer tree.Unlock()

	id := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO snapshots (id, file_count, token_count) VALUES (?, ?, ?)
	`, id, tree.FileCount(), tree.RealSize()); err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	fileStmt, err := tx.Prepare(`
		INSERT INTO snapshot_files (snapshot_id, file_id, path, status, reparse)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer fileStmt.Close()

	var exportErr error
	tree.EachFile(func(fid int, name string, status tokens.ParseStatus, flagged bool) bool {
		_, exportErr = fileStmt.Exec(id, fid, name, int(status), flagged)
		return exportErr == nil
	})
	if exportErr != nil {
		return "", fmt.Errorf("export files: %w", exportErr)
	}

	tokStmt, err := tx.Prepare(`
		INSERT INTO snapshot_tokens (snapshot_id, idx, name, kind, scope, file_id, line, parent_idx, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer tokStmt.Close()

	tree.EachToken(func(idx int, tok *tokens.Token) bool {
		var buf bytes.Buffer
		if exportErr = tok.SerializeOut(&buf); exportErr != nil {
			return false
		}
		_, exportErr = tokStmt.Exec(id, idx, tok.Name, int(tok.Kind), int(tok.Scope),
			tok.FileIdx, tok.Line, tok.ParentIndex, buf.Bytes())
		return exportErr == nil
	})
	if exportErr != nil {
		return "", fmt.Errorf("export tokens: %w", exportErr)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Import replaces the tree's contents with the named snapshot. On any
// error the tree is left cleared, mirroring the binary cache loader.
func (s *Store) Import(tree *tokens.Tree, snapshotID string) error {
	tree.Lock()
	defer tree.Unlock()

	tree.Clear()
	if err := s.load(tree, snapshotID); err != nil {
		tree.Clear()
		return err
	}
	tree.RecalcFreeList()
	tree.RecalcData()
	return nil
}

func (s *Store) load(tree *tokens.Tree, snapshotID string) error {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE id = ?`, snapshotID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("snapshot %s not found", snapshotID)
	}

	rows, err := s.db.Query(`
		SELECT file_id, path, status, reparse FROM snapshot_files WHERE snapshot_id = ?
	`, snapshotID)
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fid, status int
		var path string
		var reparse bool
		if err := rows.Scan(&fid, &path, &status, &reparse); err != nil {
			return err
		}
		tree.RestoreFile(fid, path, tokens.ParseStatus(status), reparse)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tokRows, err := s.db.Query(`
		SELECT idx, record FROM snapshot_tokens WHERE snapshot_id = ? ORDER BY idx
	`, snapshotID)
	if err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	defer tokRows.Close()

	for tokRows.Next() {
		var idx int
		var record []byte
		if err := tokRows.Scan(&idx, &record); err != nil {
			return err
		}
		tok := tokens.NewToken("", 0, 0)
		if err := tok.SerializeIn(bytes.NewReader(record)); err != nil {
			return fmt.Errorf("token %d: %w", idx, err)
		}
		if tree.InsertAt(idx, tok) < 0 {
			return fmt.Errorf("token index %d occupied", idx)
		}
	}
	return tokRows.Err()
}

// ListSnapshots returns all snapshots, newest first.
func (s *Store) ListSnapshots() ([]Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, file_count, token_count
		FROM snapshots ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var created sql.NullTime
		if err := rows.Scan(&snap.ID, &created, &snap.FileCount, &snap.TokenCount); err != nil {
			return nil, err
		}
		if created.Valid {
			snap.CreatedAt = created.Time
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the id of the most recent snapshot, or ""
// when the store is empty.
func (s *Store) LatestSnapshot() (string, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1
	`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// DeleteSnapshot drops a snapshot and its rows.
func (s *Store) DeleteSnapshot(id string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	return err
}
