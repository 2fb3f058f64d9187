package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"RoboCtl/internal/model"
)

var bucketTelemetry = []byte("telemetry")

// keyLayout is fixed width so keys sort chronologically.
const keyLayout = "2006-01-02T15:04:05.000000000Z"

// Store keeps relay telemetry history in BoltDB.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (or creates) the history database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := bbolt.Open(path, 0o666, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open BoltDB %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTelemetry)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create telemetry bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Put appends a record. Records with equal timestamps keep insertion order.
func (s *Store) Put(rec model.TelemetryRecord) error {
	v, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTelemetry)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s/%016x", rec.At.UTC().Format(keyLayout), seq)
		return b.Put([]byte(key), v)
	})
}

// Latest returns the newest record, if any.
func (s *Store) Latest() (model.TelemetryRecord, bool, error) {
	recs, err := s.History(1)
	if err != nil || len(recs) == 0 {
		return model.TelemetryRecord{}, false, err
	}
	return recs[0], true, nil
}

// History returns up to limit records, newest first.
func (s *Store) History(limit int) ([]model.TelemetryRecord, error) {
	out := []model.TelemetryRecord{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketTelemetry).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var rec model.TelemetryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
