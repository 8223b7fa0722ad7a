package profiledb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quantumhub.game/internal/hub"
)

// Store keeps per-identity progress profiles plus a navigation audit trail.
// Writes go through a background goroutine fed by a buffered channel with
// non-blocking sends, so a slow disk can never stall the hub loop; the hub's
// in-memory state stays the source of truth.
type Store struct {
	db *sql.DB

	// mu serializes enqueues against Close so nothing can send on a closed
	// channel.
	mu     sync.RWMutex
	ch     chan req
	closed bool

	wg   sync.WaitGroup
	once sync.Once
}

type reqKind int

const (
	reqProfile reqKind = iota + 1
	reqJourney
)

type req struct {
	kind reqKind

	profile profileRow
	journey hub.JourneyEntry
}

type profileRow struct {
	Identity      string
	CompletedJSON string
	CurrentQuest  string
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style navigation trail; NORMAL is enough
	// durability for a mirror of in-memory state.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			identity TEXT PRIMARY KEY,
			completed_json TEXT NOT NULL,
			current_quest TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS navigations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			identity TEXT,
			portal TEXT NOT NULL,
			destination TEXT NOT NULL,
			cause TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_navigations_identity ON navigations(identity, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// enqueue hands a request to the writer goroutine without blocking; a full
// queue or a closed store drops it.
func (s *Store) enqueue(r req) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
	}
}

// LoadProgress reads a profile synchronously. The second return reports
// whether a profile exists.
func (s *Store) LoadProgress(identity string) (hub.Progress, bool, error) {
	var completedJSON, quest string
	err := s.db.QueryRow(
		`SELECT completed_json, current_quest FROM profiles WHERE identity = ?`,
		identity,
	).Scan(&completedJSON, &quest)
	if err == sql.ErrNoRows {
		return hub.Progress{}, false, nil
	}
	if err != nil {
		return hub.Progress{}, false, err
	}

	var rooms []string
	if err := json.Unmarshal([]byte(completedJSON), &rooms); err != nil {
		return hub.Progress{}, false, fmt.Errorf("profile %s: %w", identity, err)
	}
	p := hub.Progress{Completed: make(map[string]bool, len(rooms)), CurrentQuest: quest}
	for _, r := range rooms {
		p.Completed[r] = true
	}
	return p, true, nil
}

// SaveProgress enqueues a profile upsert. Fire-and-forget: when the writer
// falls behind the request is dropped; the next mutation re-mirrors the full
// state anyway.
func (s *Store) SaveProgress(identity string, p hub.Progress) error {
	if s == nil {
		return nil
	}
	rooms := make([]string, 0, len(p.Completed))
	for r := range p.Completed {
		rooms = append(rooms, r)
	}
	b, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	s.enqueue(req{kind: reqProfile, profile: profileRow{
		Identity:      identity,
		CompletedJSON: string(b),
		CurrentQuest:  p.CurrentQuest,
	}})
	return nil
}

// WriteJourney indexes navigation events; other journey kinds are the JSONL
// log's concern and skipped here.
func (s *Store) WriteJourney(e hub.JourneyEntry) error {
	if s == nil {
		return nil
	}
	if e.Kind != "navigate" {
		return nil
	}
	s.enqueue(req{kind: reqJourney, journey: e})
	return nil
}

func (s *Store) loop() {
	ctx := context.Background()

	upsertProfile, _ := s.db.Prepare(`INSERT OR REPLACE INTO profiles(identity,completed_json,current_quest,updated_at) VALUES(?,?,?,?)`)
	insertNav, _ := s.db.Prepare(`INSERT INTO navigations(tick,session_id,identity,portal,destination,cause,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if upsertProfile != nil {
			_ = upsertProfile.Close()
		}
		if insertNav != nil {
			_ = insertNav.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		switch r.kind {
		case reqProfile:
			p := r.profile
			if upsertProfile != nil {
				if _, err := tx.Stmt(upsertProfile).Exec(p.Identity, p.CompletedJSON, p.CurrentQuest, now); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqJourney:
			e := r.journey
			if insertNav != nil {
				if _, err := tx.Stmt(insertNav).Exec(int64(e.Tick), e.SessionID, e.Identity, e.Portal, e.Destination, e.Cause, now); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
