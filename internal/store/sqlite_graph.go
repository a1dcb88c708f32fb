package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteGraphStore implements GraphStore on SQLite. WAL mode allows
// concurrent readers while ingestion writes, and a single-connection
// pool avoids writer lock contention.
type SQLiteGraphStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ GraphStore = (*SQLiteGraphStore)(nil)

// validateGraphIntegrity checks a graph database before opening.
// Returns nil if valid or missing, an error describing corruption if not.
func validateGraphIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Database doesn't exist, will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteGraphStore opens (or creates) a graph database at path.
// An empty path creates an in-memory store for testing.
func NewSQLiteGraphStore(path string) (*SQLiteGraphStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateGraphIntegrity(path); validErr != nil {
			slog.Warn("graph_store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			// Auto-clear corrupted database; a reingest rebuilds it.
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("graph database corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("graph_store_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reingest"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; DSN
	// parameters can be silently ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteGraphStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the node and edge tables.
func (s *SQLiteGraphStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		label      TEXT NOT NULL,
		properties TEXT NOT NULL DEFAULT '{}'
	);

	-- seq preserves insertion order so traversal and fanout capping
	-- are deterministic across queries. Re-upserting an edge keeps
	-- its original seq.
	CREATE TABLE IF NOT EXISTS edges (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relation  TEXT NOT NULL,
		weight    REAL NOT NULL DEFAULT 0,
		UNIQUE (source_id, target_id, relation)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// PutNode upserts a node by id.
func (s *SQLiteGraphStore) PutNode(ctx context.Context, node *GraphNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("graph store is closed")
	}
	if node.ID == "" {
		return fmt.Errorf("node id is empty")
	}

	props := node.Properties
	if props == nil {
		props = map[string]string{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to marshal properties for node %s: %w", node.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, kind, label, properties) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			label = excluded.label,
			properties = excluded.properties`,
		node.ID, string(node.Kind), node.Label, string(propsJSON))
	if err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", node.ID, err)
	}
	return nil
}

// PutEdge upserts an edge keyed by (source, target, relation). The
// original insertion position is preserved on re-upsert.
func (s *SQLiteGraphStore) PutEdge(ctx context.Context, edge *GraphEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("graph store is closed")
	}
	if edge.SourceID == "" || edge.TargetID == "" {
		return fmt.Errorf("edge endpoints must be non-empty")
	}
	if edge.Relation == "" {
		return fmt.Errorf("edge relation is empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges (source_id, target_id, relation, weight) VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relation) DO UPDATE SET
			weight = excluded.weight`,
		edge.SourceID, edge.TargetID, edge.Relation, edge.Weight)
	if err != nil {
		return fmt.Errorf("failed to upsert edge %s-[%s]->%s: %w", edge.SourceID, edge.Relation, edge.TargetID, err)
	}
	return nil
}

// OutgoingEdges returns edges leaving nodeID in insertion order.
func (s *SQLiteGraphStore) OutgoingEdges(ctx context.Context, nodeID string) ([]*GraphEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("graph store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, relation, weight
		FROM edges WHERE source_id = ? ORDER BY seq`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges for %s: %w", nodeID, err)
	}
	defer rows.Close()

	var edges []*GraphEdge
	for rows.Next() {
		e := &GraphEdge{}
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Relation, &e.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// GetNode returns the node by id, or ErrNodeNotFound.
func (s *SQLiteGraphStore) GetNode(ctx context.Context, nodeID string) (*GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("graph store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, label, properties FROM nodes WHERE id = ?`, nodeID)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", nodeID, err)
	}
	return node, nil
}

// GetChunkNodes returns chunk-kind nodes for the given ids in the
// order requested, silently skipping ids with no node.
func (s *SQLiteGraphStore) GetChunkNodes(ctx context.Context, ids []string) ([]*GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("graph store is closed")
	}
	if len(ids) == 0 {
		return []*GraphNode{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT id, kind, label, properties FROM nodes
		WHERE id IN (%s) AND kind = ?`, strings.Join(placeholders, ","))
	args = append(args, string(NodeKindChunk))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk nodes: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*GraphNode, len(ids))
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		byID[node.ID] = node
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the caller's id order.
	nodes := make([]*GraphNode, 0, len(byID))
	for _, id := range ids {
		if node, ok := byID[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// NodeCount returns the total number of nodes.
func (s *SQLiteGraphStore) NodeCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM nodes`)
}

// EdgeCount returns the total number of edges.
func (s *SQLiteGraphStore) EdgeCount(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM edges`)
}

func (s *SQLiteGraphStore) count(ctx context.Context, query string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("graph store is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return n, nil
}

// DeleteDocument removes a document node, its chunk nodes, and all
// edges touching them. Entity nodes are kept; orphaned entities are
// harmless and may be re-linked by later ingests.
func (s *SQLiteGraphStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("graph store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Chunk ids are derived from the document id prefix.
	prefix := docID + "_chunk_%"
	statements := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM edges WHERE source_id = ? OR target_id = ?
			OR source_id LIKE ? OR target_id LIKE ?`, []any{docID, docID, prefix, prefix}},
		{`DELETE FROM nodes WHERE id = ? OR id LIKE ?`, []any{docID, prefix}},
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", docID, err)
		}
	}
	return tx.Commit()
}

// Checkpoint forces a WAL checkpoint for durability.
func (s *SQLiteGraphStore) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("graph store is closed")
	}
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Close checkpoints and closes the database. Idempotent.
func (s *SQLiteGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*GraphNode, error) {
	var node GraphNode
	var kind, propsJSON string
	if err := row.Scan(&node.ID, &kind, &node.Label, &propsJSON); err != nil {
		return nil, err
	}
	node.Kind = NodeKind(kind)
	if err := json.Unmarshal([]byte(propsJSON), &node.Properties); err != nil {
		return nil, fmt.Errorf("corrupt properties for node %s: %w", node.ID, err)
	}
	return &node, nil
}
