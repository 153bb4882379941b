// Package memory implements the Memory Store (C1): durable persistence of
// conversations, messages, tasks, and model-performance rows, with semantic
// retrieval over caller-supplied embeddings. Grounded on the teacher's use
// of modernc.org/sqlite (pure Go, no cgo) and github.com/google/uuid for ids.
package memory

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

// Options configure a Store.
type Options struct {
	// Path is the sqlite file location (unencrypted mode) or the encrypted
	// envelope location (encrypted mode). Typically config.MemoryDBPath().
	Path string
	// Passphrase enables at-rest encryption when non-empty (§4.1).
	Passphrase string
	Logger     *slog.Logger
}

// Store is the Memory Store. All mutating operations are serialized through
// writeMu, matching spec.md §5's "single writer lock" requirement; reads use
// the shared *sql.DB connection pool directly (modernc.org/sqlite already
// serializes at the connection level, but the explicit mutex keeps the
// invariant obvious and testable).
type Store struct {
	log *slog.Logger

	db *sql.DB

	// workPath/blobPath/key are only set in encrypted mode.
	encrypted bool
	workPath  string
	blobPath  string
	key       []byte

	writeMu sync.Mutex
}

// Open opens (or creates) the store at opts.Path. See crypto.go for the
// encryption envelope scheme.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	path := opts.Path
	if path == "" {
		return nil, jerr.New(jerr.BadArgs, "memory", "Open", "missing path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "Open", err)
	}

	saltPath := path + ".salt"
	_, saltExisted := os.Stat(saltPath)
	saltExists := saltExisted == nil

	encrypted := opts.Passphrase != ""
	if !encrypted && saltExists {
		return nil, jerr.New(jerr.BadKey, "memory", "Open", "store was created with a passphrase; one is required to reopen it")
	}
	if encrypted && !saltExists {
		// First open with encryption: salt will be created by loadOrCreateSalt.
		if _, err := os.Stat(path); err == nil {
			return nil, jerr.New(jerr.BadKey, "memory", "Open", "store exists unencrypted; cannot enable encryption on an existing file")
		}
	}

	s := &Store{log: logger}

	sqlitePath := path
	if encrypted {
		salt, _, err := loadOrCreateSalt(saltPath)
		if err != nil {
			return nil, err
		}
		key := deriveKey(opts.Passphrase, salt)

		workPath := path + ".work"
		if blob, err := os.ReadFile(path); err == nil {
			plaintext, derr := decryptFile(key, blob)
			if derr != nil {
				return nil, derr
			}
			if err := os.WriteFile(workPath, plaintext, 0o600); err != nil {
				return nil, jerr.Wrap(jerr.Backend, "memory", "Open", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, jerr.Wrap(jerr.Backend, "memory", "Open", err)
		}

		s.encrypted = true
		s.workPath = workPath
		s.blobPath = path
		s.key = key
		sqlitePath = workPath
	}

	db, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "Open", err)
	}
	db.SetMaxOpenConns(1) // at-most-one-writer (§4.1): one physical connection, serialized by writeMu for writes.
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, jerr.Wrap(jerr.Backend, "memory", "Open", err)
	}
	s.db = db
	return s, nil
}

// Close flushes the database and, in encrypted mode, re-encrypts the working
// copy back into the envelope file and removes the plaintext working copy.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return jerr.Wrap(jerr.Backend, "memory", "Close", err)
	}
	if !s.encrypted {
		return nil
	}

	plaintext, err := os.ReadFile(s.workPath)
	if err != nil {
		return jerr.Wrap(jerr.Backend, "memory", "Close", err)
	}
	blob, err := encryptFile(s.key, plaintext)
	if err != nil {
		return err
	}
	tmp := s.blobPath + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return jerr.Wrap(jerr.Backend, "memory", "Close", err)
	}
	if err := os.Rename(tmp, s.blobPath); err != nil {
		return jerr.Wrap(jerr.Backend, "memory", "Close", err)
	}

	// Best-effort zero of the plaintext working copy before removal.
	if zeroErr := zeroFile(s.workPath); zeroErr != nil {
		s.log.Warn("memory: zero working copy failed", "error", zeroErr)
	}
	return os.Remove(s.workPath)
}

func zeroFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	zeros := make([]byte, info.Size())
	_, err = f.WriteAt(zeros, 0)
	return err
}

func newID() string {
	return uuid.NewString()
}
