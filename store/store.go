// Package store implements the embedded local database backing the
// prescription system. It wraps a single bbolt file with typed, indexed
// access to the catalog collections. All multi-step mutations run inside
// one bbolt read-write transaction, which is what makes catalog syncs
// atomic per entity and the learn upsert race-free: bbolt serializes
// writers, so a lookup+upsert wrapped in Update cannot interleave with
// a concurrent one.
package store

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names. The *_name and *_kw buckets are secondary indexes kept in
// lockstep with their primary bucket on every put.
var (
	bucketMedications      = []byte("medications")
	bucketMedicationNames  = []byte("medications_name")
	bucketMedicationKw     = []byte("medications_kw")
	bucketDiagnoses        = []byte("diagnoses")
	bucketDiagnosisNames   = []byte("diagnoses_name")
	bucketDiagnosisKw      = []byte("diagnoses_kw")
	bucketTreatments       = []byte("treatments")
	bucketTreatmentsByDx   = []byte("treatments_dx")
	bucketPatients         = []byte("patients")
	bucketPrescriptions    = []byte("prescriptions")
	bucketCounters         = []byte("counters")
	bucketMeta             = []byte("meta")
)

var allBuckets = [][]byte{
	bucketMedications, bucketMedicationNames, bucketMedicationKw,
	bucketDiagnoses, bucketDiagnosisNames, bucketDiagnosisKw,
	bucketTreatments, bucketTreatmentsByDx,
	bucketPatients, bucketPrescriptions,
	bucketCounters, bucketMeta,
}

// Store is a handle to the opened database file. It is safe for concurrent
// use; open it once at startup and close it at teardown.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the database file at path and ensures all
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}

	err = db.Update(func(btx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := btx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Size returns the database file size in bytes, for health reporting.
func (s *Store) Size() int64 {
	var size int64
	s.db.View(func(btx *bolt.Tx) error {
		size = btx.Size()
		return nil
	})
	return size
}

// Tx wraps a bbolt transaction with typed collection accessors.
type Tx struct {
	btx *bolt.Tx
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(*Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Update runs fn in a read-write transaction. Either every mutation fn
// performs is committed, or none are.
func (s *Store) Update(fn func(*Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// indexKey builds a composite secondary index key. The NUL separator keeps
// distinct (term, id) pairs from colliding while preserving prefix order
// on the term.
func indexKey(term, id string) []byte {
	key := make([]byte, 0, len(term)+1+len(id))
	key = append(key, term...)
	key = append(key, 0)
	key = append(key, id...)
	return key
}

// scanPrefix collects up to limit index values whose key starts with
// prefix, skipping ids already present in seen.
func scanPrefix(b *bolt.Bucket, prefix string, seen map[string]struct{}, limit int) []string {
	var ids []string
	c := b.Cursor()
	p := []byte(prefix)

	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		if limit > 0 && len(seen) >= limit {
			break
		}
		id := string(v)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}
