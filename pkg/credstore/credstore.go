// Package credstore persists the session's credential record on disk.
//
// The store is a single-key bbolt database: one bucket, one JSON-encoded
// record. bbolt gives atomic, fsynced writes, so a reader never observes a
// half-written record even if the process dies mid-save. An optional sealer
// encrypts the record at rest so refresh tokens are not plaintext on disk.
package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/listora/listora-go/pkg/authsdk"
)

const (
	// dirPerm is the permission mode for the store directory.
	dirPerm = fs.FileMode(0o700)

	// filePerm is the permission mode for the database file.
	filePerm = fs.FileMode(0o600)

	// openTimeout bounds the wait for the bolt file lock, so a second
	// process using the same store fails fast instead of hanging.
	openTimeout = 5 * time.Second
)

var (
	credentialsBucket = []byte("credentials")
	recordKey         = []byte("current")
)

// Store is a durable authsdk.CredentialStore backed by bbolt.
type Store struct {
	db     *bolt.DB
	sealer *Sealer
}

var _ authsdk.CredentialStore = (*Store)(nil)

// Open opens (creating if needed) the credential database at path. A
// non-nil sealer encrypts records at rest.
func Open(path string, sealer *Sealer) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating credential store directory: %w", err)
	}

	db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(credentialsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialising credential store: %w", err)
	}

	return &Store{db: db, sealer: sealer}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the record, replacing any previous one atomically.
func (s *Store) Save(_ context.Context, rec authsdk.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding credential record: %w", err)
	}

	if s.sealer != nil {
		payload, err = s.sealer.Seal(payload)
		if err != nil {
			return fmt.Errorf("sealing credential record: %w", err)
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(credentialsBucket).Put(recordKey, payload)
	})
}

// Load returns the persisted record, if any. A record that cannot be
// unsealed or decoded (key changed, corrupted file) is reported as absent
// rather than as an error, so the session simply starts anonymous.
func (s *Store) Load(_ context.Context) (authsdk.Record, bool, error) {
	var payload []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(credentialsBucket).Get(recordKey); v != nil {
			payload = append(payload, v...)
		}
		return nil
	})
	if err != nil {
		return authsdk.Record{}, false, err
	}
	if payload == nil {
		return authsdk.Record{}, false, nil
	}

	if s.sealer != nil {
		opened, err := s.sealer.Open(payload)
		if err != nil {
			return authsdk.Record{}, false, nil
		}
		payload = opened
	}

	var rec authsdk.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return authsdk.Record{}, false, nil
	}

	return rec, true, nil
}

// Clear removes the persisted record. Clearing an empty store is a no-op.
func (s *Store) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(credentialsBucket).Delete(recordKey)
	})
}
