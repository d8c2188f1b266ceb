package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/skeletor-js/medulla/internal/types"
)

const (
	// MedullaDir is the project directory created by init.
	MedullaDir = ".medulla"
	// SnapshotFile is the CRDT snapshot blob inside MedullaDir.
	SnapshotFile = "loro.db"
	// lockFile guards the project directory against concurrent processes.
	lockFile = "medulla.lock"
)

// Store owns the authoritative state of all entities and relations.
//
// Store is not safe for concurrent use; the protocol server serialises
// access behind its store lock.
type Store struct {
	doc   *document
	dir   string // the .medulla directory
	path  string // the snapshot blob path
	actor string // this replica's id, unique per open store
	lock  *flock.Flock
}

// Init creates a new medulla project under root. It fails with
// types.ErrAlreadyInitialized when the project directory already exists.
func Init(root string) (*Store, error) {
	dir := filepath.Join(root, MedullaDir)
	if _, err := os.Stat(dir); err == nil {
		return nil, types.ErrAlreadyInitialized
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.Storagef("create project directory", err)
	}

	s := &Store{
		doc:   newDocument(),
		dir:   dir,
		path:  filepath.Join(dir, SnapshotFile),
		actor: newActorID(),
	}
	if err := s.acquireLock(); err != nil {
		return nil, err
	}
	if err := s.Save(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Open loads an existing project. It fails with types.ErrNotInitialized
// when the snapshot blob is missing.
func Open(root string) (*Store, error) {
	dir := filepath.Join(root, MedullaDir)
	path := filepath.Join(dir, SnapshotFile)
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrNotInitialized
		}
		return nil, types.Storagef("read snapshot", err)
	}

	doc, err := decodeDocument(blob)
	if err != nil {
		return nil, types.Storagef("decode snapshot", err)
	}

	s := &Store{doc: doc, dir: dir, path: path, actor: newActorID()}
	if err := s.acquireLock(); err != nil {
		return nil, err
	}
	return s, nil
}

// acquireLock takes the project file lock, retrying briefly so that two
// commands racing on startup queue instead of failing.
func (s *Store) acquireLock() error {
	s.lock = flock.New(filepath.Join(s.dir, lockFile))
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(50*time.Millisecond), 40)
	err := backoff.Retry(func() error {
		ok, err := s.lock.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return fmt.Errorf("lock held by another process")
		}
		return nil
	}, policy)
	if err != nil {
		return types.Storagef("acquire project lock", err)
	}
	return nil
}

// Close releases the project lock.
func (s *Store) Close() error {
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

// Dir returns the .medulla directory path.
func (s *Store) Dir() string { return s.dir }

// Path returns the snapshot blob path.
func (s *Store) Path() string { return s.path }

// Save exports the snapshot blob and atomically replaces the on-disk
// file, so readers never observe a half-written snapshot.
func (s *Store) Save() error {
	blob, err := s.doc.encode()
	if err != nil {
		return types.Storagef("encode snapshot", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return types.Storagef("write snapshot", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return types.Storagef("replace snapshot", err)
	}
	return nil
}

// Reload replaces the in-memory document by merging the on-disk snapshot
// into it. Used when the blob was rewritten externally (git merge).
func (s *Store) Reload() error {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		return types.Storagef("read snapshot", err)
	}
	doc, err := decodeDocument(blob)
	if err != nil {
		return types.Storagef("decode snapshot", err)
	}
	s.doc.merge(doc)
	return nil
}

// Import merges a foreign snapshot blob into the live document. Merging
// is commutative: importing the same blob twice is a no-op.
func (s *Store) Import(blob []byte) error {
	doc, err := decodeDocument(blob)
	if err != nil {
		return types.Storagef("decode import", err)
	}
	s.doc.merge(doc)
	return nil
}

// Export returns the current snapshot blob without touching disk.
func (s *Store) Export() ([]byte, error) {
	blob, err := s.doc.encode()
	if err != nil {
		return nil, types.Storagef("encode snapshot", err)
	}
	return blob, nil
}

// Version returns the opaque content identity of the document. Equal
// versions imply semantically equal content.
func (s *Store) Version() string {
	return s.doc.version()
}

// NextSequence returns one plus the highest sequence number previously
// assigned to kind. The counter is persisted in _meta.type_sequences and
// merged by max, so merged branches cannot reissue a number.
func (s *Store) NextSequence(kind types.Kind) uint32 {
	return s.doc.Meta.TypeSequences[string(kind)] + 1
}

// stamp advances the document clock and returns the write stamp.
func (s *Store) stamp() Stamp {
	s.doc.Clock++
	return Stamp{Lamport: s.doc.Clock, Actor: s.actor}
}

// newActorID generates a replica id for one opened store. Stores opened
// separately (even in the same process) act as distinct replicas, so
// their element stamps never collide.
func newActorID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("pid-%d", os.Getpid())
	}
	return hex.EncodeToString(b[:])
}
