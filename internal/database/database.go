package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"mixdeck/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Querier is the statement surface shared by *sql.DB and *sql.Tx.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Database wraps a *sql.DB holding the catalogue. Every statement runs under
// a single store mutex; a transaction hands its Store to the callback so the
// helpers it calls never take the mutex again.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger
	path   string

	mu sync.Mutex

	errMu   sync.Mutex
	lastErr string

	// Prepared statements for the scanner's hot paths
	trackIDByPathStmt *sql.Stmt
	updateBPMStmt     *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite catalogue at dbPath and ensures
// all tables and indices exist. A nil logger gets a JSON logrus logger.
// Connection failures are returned as ErrStore and are not retried.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: empty database path", models.ErrInvalidArgument)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	conn, err := sql.Open("sqlite3", dbPath+"?mode=rwc&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", models.ErrStore, err)
	}

	// All statements are serialised by the store mutex, so one connection
	// is enough and keeps per-connection pragmas in effect.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to connect to database: %v", models.ErrStore, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
		path:   dbPath,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to create tables: %v", models.ErrStore, err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to prepare statements: %v", models.ErrStore, err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	foldersTable := `
	CREATE TABLE IF NOT EXISTS folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		num_files INTEGER NOT NULL DEFAULT 0 CHECK (num_files >= 0),
		total_size INTEGER NOT NULL DEFAULT 0,
		last_scanned INTEGER NOT NULL DEFAULT 0
	);`

	tracksTable := `
	CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folder_id INTEGER NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		fs_last_modified INTEGER NOT NULL DEFAULT 0,
		file_size INTEGER NOT NULL DEFAULT 0,
		date_added INTEGER NOT NULL DEFAULT 0,
		last_scanned INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		album_artist TEXT NOT NULL DEFAULT '',
		track_number INTEGER NOT NULL DEFAULT 0,
		disc_number INTEGER NOT NULL DEFAULT 0,
		year INTEGER NOT NULL DEFAULT 0,
		duration INTEGER NOT NULL DEFAULT 0 CHECK (duration >= 0),
		sample_rate INTEGER NOT NULL DEFAULT 0,
		channels INTEGER NOT NULL DEFAULT 0,
		bitrate INTEGER NOT NULL DEFAULT 0,
		codec_name TEXT NOT NULL DEFAULT '',
		bpm REAL NOT NULL DEFAULT 0,
		key_string TEXT NOT NULL DEFAULT '',
		beat_locations TEXT NOT NULL DEFAULT '',
		rating INTEGER NOT NULL DEFAULT 0,
		liked_status INTEGER NOT NULL DEFAULT 0 CHECK (liked_status IN (-1, 0, 1)),
		play_count INTEGER NOT NULL DEFAULT 0,
		last_played INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		is_missing BOOLEAN NOT NULL DEFAULT FALSE,
		FOREIGN KEY (folder_id) REFERENCES folders(id) ON DELETE CASCADE
	);`

	tagsTable := `
	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);`

	trackTagsTable := `
	CREATE TABLE IF NOT EXISTS track_tags (
		track_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (track_id, tag_id)
	);`

	workingSetsTable := `
	CREATE TABLE IF NOT EXISTS working_sets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		track_count INTEGER NOT NULL DEFAULT 0,
		total_duration INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0
	);`

	workingSetTracksTable := `
	CREATE TABLE IF NOT EXISTS working_set_tracks (
		working_set_id INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		FOREIGN KEY (working_set_id) REFERENCES working_sets(id) ON DELETE CASCADE,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE,
		PRIMARY KEY (working_set_id, track_id)
	);`

	mixesTable := `
	CREATE TABLE IF NOT EXISTS mixes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		timestamp INTEGER NOT NULL DEFAULT 0,
		number_of_tracks INTEGER NOT NULL DEFAULT 0,
		total_duration INTEGER NOT NULL DEFAULT 0
	);`

	mixTracksTable := `
	CREATE TABLE IF NOT EXISTS mix_tracks (
		mix_id INTEGER NOT NULL,
		order_in_mix INTEGER NOT NULL CHECK (order_in_mix >= 0),
		track_id INTEGER NOT NULL,
		silence_start INTEGER NOT NULL DEFAULT 0,
		fade_in_start INTEGER NOT NULL DEFAULT 0,
		fade_in_end INTEGER NOT NULL DEFAULT 0,
		fade_out_start INTEGER NOT NULL DEFAULT 0,
		fade_out_end INTEGER NOT NULL DEFAULT 0,
		cutoff_time INTEGER NOT NULL DEFAULT 0,
		volume_at_start INTEGER NOT NULL DEFAULT 10000,
		volume_at_end INTEGER NOT NULL DEFAULT 10000,
		mix_start_time INTEGER NOT NULL DEFAULT 0,
		crossfade_duration INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (mix_id) REFERENCES mixes(id) ON DELETE CASCADE,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE,
		PRIMARY KEY (mix_id, order_in_mix)
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_tracks_folder ON tracks(folder_id);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_artist_album ON tracks(artist, album, track_number);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_search ON tracks(title, artist, album);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_bpm ON tracks(bpm);",
		"CREATE INDEX IF NOT EXISTS idx_track_tags_tag ON track_tags(tag_id);",
		"CREATE INDEX IF NOT EXISTS idx_working_set_tracks_track ON working_set_tracks(track_id);",
		"CREATE INDEX IF NOT EXISTS idx_mix_tracks_track ON mix_tracks(track_id);",
	}

	tables := []string{
		foldersTable, tracksTable, tagsTable, trackTagsTable,
		workingSetsTable, workingSetTracksTable, mixesTable, mixTracksTable,
	}
	for _, table := range tables {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run; keep them lightweight.
func (db *Database) runMigrations() error {
	// Migration 1: catalogues created before notes were tracked
	var columnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('tracks')
		WHERE name = 'notes'`).Scan(&columnExists)
	if err != nil {
		return err
	}

	if !columnExists {
		if _, err := db.conn.Exec("ALTER TABLE tracks ADD COLUMN notes TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
		db.logger.Info("Added notes column to tracks table")
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements for better performance
func (db *Database) prepareStatements() error {
	var err error

	db.trackIDByPathStmt, err = db.conn.Prepare(`SELECT id FROM tracks WHERE file_path = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare track by path statement: %w", err)
	}

	db.updateBPMStmt, err = db.conn.Prepare(`UPDATE tracks SET bpm = ?, beat_locations = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare update bpm statement: %w", err)
	}

	return nil
}

// Path returns the file the catalogue lives in.
func (db *Database) Path() string {
	return db.path
}

// Logger returns the logger the store reports through.
func (db *Database) Logger() *logrus.Logger {
	return db.logger
}

// Do runs fn with exclusive access to the store outside of a transaction.
func (db *Database) Do(fn func(s Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.record(fn(Store{q: db.conn, db: db}))
}

// Transaction runs fn inside one atomic transaction. The transaction commits
// when fn returns nil and rolls back on error or panic.
func (db *Database) Transaction(fn func(s Store) error) (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return db.record(fmt.Errorf("%w: begin transaction: %v", models.ErrStore, err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		if p := recover(); p != nil {
			err = db.record(fmt.Errorf("%w: transaction aborted: %v", models.ErrStore, p))
		}
	}()

	if err := fn(Store{q: tx, tx: tx, db: db}); err != nil {
		return db.record(err)
	}

	if err := tx.Commit(); err != nil {
		return db.record(fmt.Errorf("%w: commit: %v", models.ErrStore, err))
	}
	committed = true
	return nil
}

// LastError returns the message of the most recent failed operation.
func (db *Database) LastError() string {
	db.errMu.Lock()
	defer db.errMu.Unlock()
	return db.lastErr
}

func (db *Database) record(err error) error {
	if err == nil {
		return nil
	}
	db.errMu.Lock()
	db.lastErr = err.Error()
	db.errMu.Unlock()
	return err
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	statements := []*sql.Stmt{
		db.trackIDByPathStmt,
		db.updateBPMStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Store is the statement handle given to Do and Transaction callbacks. It
// must not outlive the callback and must not call back into Database.
type Store struct {
	q  Querier
	tx *sql.Tx
	db *Database
}

// InTransaction reports whether the handle belongs to a transaction.
func (s Store) InTransaction() bool {
	return s.tx != nil
}

func (s Store) stmt(st *sql.Stmt) *sql.Stmt {
	if s.tx != nil {
		return s.tx.Stmt(st)
	}
	return st
}

// storeErr wraps a driver error as ErrStore, keeping ErrNotFound as is.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", models.ErrStore, op, err)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
