package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"steward/internal/action"
)

const (
	historyFileMode = 0644
	historyDirMode  = 0755
	maxBackups      = 10
)

// ErrStoreWrite marks the one fatal failure mode: an append that could not be
// made durable. Callers must stop the session when they see it, because an
// already-performed side effect would otherwise go unrecorded.
var ErrStoreWrite = errors.New("history store write failed")

// RecordType discriminates persisted record envelopes.
type RecordType string

const (
	RecordEntry      RecordType = "entry"
	RecordCompaction RecordType = "compaction"
	RecordBoundary   RecordType = "boundary"
)

// Entry is one mediated action with its decision and outcome.
type Entry struct {
	Seq      int64           `json:"seq"`
	Time     time.Time       `json:"time"`
	Action   action.Proposed `json:"action"`
	Decision action.Decision `json:"decision"`
	Outcome  action.Outcome  `json:"outcome"`
}

// Compaction summarizes a contiguous range of entries. The covered entries
// stay in the file for audit; display views show the summary instead.
type Compaction struct {
	FromSeq int64     `json:"from_seq"`
	ToSeq   int64     `json:"to_seq"`
	Summary string    `json:"summary"`
	Time    time.Time `json:"time"`
}

// Boundary marks the end of a session inside a persisted log, so prior
// sessions stay distinguishable after a clear.
type Boundary struct {
	SessionID     string    `json:"session_id"`
	NextSessionID string    `json:"next_session_id,omitempty"`
	Time          time.Time `json:"time"`
}

// Record is the on-disk envelope, one JSON line per record.
type Record struct {
	Type       RecordType  `json:"type"`
	Entry      *Entry      `json:"entry,omitempty"`
	Compaction *Compaction `json:"compaction,omitempty"`
	Boundary   *Boundary   `json:"boundary,omitempty"`
}

// Store is the append-only, crash-safe session history log. One file per
// session under <dir>/sessions; the file is exclusive to its session for the
// session's lifetime. Append is the only mutation and is flushed before it
// returns.
type Store struct {
	dir       string
	sessionID string

	mu          sync.Mutex
	file        *os.File
	seq         int64
	entries     []Entry
	compactions []Compaction
	now         func() time.Time
}

// New creates a store with a fresh session id.
func New(dir string) (*Store, error) {
	s := &Store{dir: dir, now: time.Now}
	if err := s.openSession(uuid.NewString()); err != nil {
		return nil, err
	}
	return s, nil
}

// Resume reopens an existing session file after a crash or restart. Durably
// appended records are recovered; a trailing partial line from an interrupted
// write is ignored.
func Resume(dir, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	s := &Store{dir: dir, now: time.Now}
	if err := s.openSession(sessionID); err != nil {
		return nil, err
	}
	return s, nil
}

// SessionID returns the id of the session this store currently logs.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// NextSeq returns the sequence number the next append will receive.
func (s *Store) NextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq + 1
}

// Append records one mediated action. The assigned sequence number is
// monotonic and gapless within the session. The record is synced to disk
// before Append returns; any failure wraps ErrStoreWrite.
func (s *Store) Append(a action.Proposed, d action.Decision, o action.Outcome) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq + 1
	a.Seq = seq
	o.Seq = seq
	entry := Entry{Seq: seq, Time: s.now().UTC(), Action: a, Decision: d, Outcome: o}

	if err := s.writeRecord(Record{Type: RecordEntry, Entry: &entry}); err != nil {
		return 0, err
	}

	s.seq = seq
	s.entries = append(s.entries, entry)
	return seq, nil
}

// AppendCompaction commits a compaction record covering [FromSeq, ToSeq].
func (s *Store) AppendCompaction(c Compaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.FromSeq <= 0 || c.ToSeq < c.FromSeq || c.ToSeq > s.seq {
		return fmt.Errorf("invalid compaction range [%d, %d] with seq %d", c.FromSeq, c.ToSeq, s.seq)
	}
	if c.Time.IsZero() {
		c.Time = s.now().UTC()
	}

	if err := s.writeRecord(Record{Type: RecordCompaction, Compaction: &c}); err != nil {
		return err
	}
	s.compactions = append(s.compactions, c)
	return nil
}

// Clear ends the current session: a boundary marker is durably appended to
// the old file, the file is backed up, and a fresh session id and file take
// over with the sequence reset. Returns the new session id.
func (s *Store) Clear() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextID := uuid.NewString()
	boundary := Boundary{SessionID: s.sessionID, NextSessionID: nextID, Time: s.now().UTC()}
	if err := s.writeRecord(Record{Type: RecordBoundary, Boundary: &boundary}); err != nil {
		return "", err
	}

	oldPath := s.sessionPath(s.sessionID)
	if err := s.file.Close(); err != nil {
		return "", fmt.Errorf("%w: close session file: %v", ErrStoreWrite, err)
	}
	s.file = nil

	if err := s.backup(oldPath); err != nil {
		// Backups are best effort; the original file stays in place.
		slog.Warn("session backup failed", "session_id", s.sessionID, "error", err)
	}

	if err := s.openSessionLocked(nextID); err != nil {
		return "", err
	}
	return nextID, nil
}

// Close releases the session file without ending the session; Resume can pick
// it back up.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ViewAll returns every entry of the current session in sequence order,
// including entries covered by compactions.
func (s *Store) ViewAll() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ViewRecent returns the last n entries in sequence order.
func (s *Store) ViewRecent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

// ViewCompacted returns the display sequence: compaction records replace the
// entries they cover, everything else appears unsummarized, total order
// preserved.
func (s *Store) ViewCompacted() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	covered := func(seq int64) (Compaction, bool) {
		for _, c := range s.compactions {
			if seq >= c.FromSeq && seq <= c.ToSeq {
				return c, true
			}
		}
		return Compaction{}, false
	}

	out := make([]Record, 0, len(s.entries))
	var lastCompaction *Compaction
	for i := range s.entries {
		entry := s.entries[i]
		if c, ok := covered(entry.Seq); ok {
			if lastCompaction == nil || lastCompaction.FromSeq != c.FromSeq || lastCompaction.ToSeq != c.ToSeq {
				cc := c
				out = append(out, Record{Type: RecordCompaction, Compaction: &cc})
				lastCompaction = &cc
			}
			continue
		}
		lastCompaction = nil
		e := entry
		out = append(out, Record{Type: RecordEntry, Entry: &e})
	}
	return out
}

// LiveEntries returns the entries not yet covered by a compaction, oldest
// first. This is the compactor's working set.
func (s *Store) LiveEntries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		live := true
		for _, c := range s.compactions {
			if entry.Seq >= c.FromSeq && entry.Seq <= c.ToSeq {
				live = false
				break
			}
		}
		if live {
			out = append(out, entry)
		}
	}
	return out
}

func (s *Store) openSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openSessionLocked(id)
}

func (s *Store) openSessionLocked(id string) error {
	dir := filepath.Join(s.dir, "sessions")
	if err := os.MkdirAll(dir, historyDirMode); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	path := filepath.Join(dir, sanitizeID(id)+".jsonl")

	s.sessionID = id
	s.seq = 0
	s.entries = nil
	s.compactions = nil

	if err := s.loadExisting(path); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, historyFileMode)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	s.file = file
	return nil
}

// loadExisting recovers durably appended records from a prior run of the same
// session. Unparseable lines (one interrupted trailing write at most) are
// skipped.
func (s *Store) loadExisting(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open session file for recovery: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var rec Record
			if jsonErr := json.Unmarshal(line, &rec); jsonErr == nil {
				s.applyRecovered(rec)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan session file: %w", err)
		}
	}
}

func (s *Store) applyRecovered(rec Record) {
	switch rec.Type {
	case RecordEntry:
		if rec.Entry == nil {
			return
		}
		s.entries = append(s.entries, *rec.Entry)
		if rec.Entry.Seq > s.seq {
			s.seq = rec.Entry.Seq
		}
	case RecordCompaction:
		if rec.Compaction == nil {
			return
		}
		s.compactions = append(s.compactions, *rec.Compaction)
	case RecordBoundary:
		// A boundary in this file means the session was already cleared;
		// recovered content before it belongs to the closed run.
	}
}

func (s *Store) writeRecord(rec Record) error {
	if s.file == nil {
		return fmt.Errorf("%w: session file is closed", ErrStoreWrite)
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal record: %v", ErrStoreWrite, err)
	}
	encoded = append(encoded, '\n')
	if _, err := s.file.Write(encoded); err != nil {
		return fmt.Errorf("%w: append record: %v", ErrStoreWrite, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync session file: %v", ErrStoreWrite, err)
	}
	return nil
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, "sessions", sanitizeID(id)+".jsonl")
}

// backup copies a closed session file into <dir>/backups with a timestamped
// name and prunes all but the newest entries.
func (s *Store) backup(path string) error {
	backupDir := filepath.Join(s.dir, "backups")
	if err := os.MkdirAll(backupDir, historyDirMode); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read session file for backup: %w", err)
	}
	name := fmt.Sprintf("session_%s.jsonl", s.now().UTC().Format("20060102_150405.000000000"))
	if err := os.WriteFile(filepath.Join(backupDir, name), data, historyFileMode); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	return pruneBackups(backupDir)
}

func pruneBackups(dir string) error {
	items, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.IsDir() || !strings.HasPrefix(item.Name(), "session_") {
			continue
		}
		names = append(names, item.Name())
	}
	if len(names) <= maxBackups {
		return nil
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-maxBackups] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeID(id string) string {
	return strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(id)
}
