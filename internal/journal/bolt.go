package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ferux/twinpatcher/internal/model"
)

const batchBucketPrefix = "batch_"

type boltJournal struct {
	db *bolt.DB
}

// Open opens or creates journal database at path.
func Open(path string) (Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}

	return &boltJournal{db: db}, nil
}

// Record stores entry in the bucket of its batch. Entry of the same device is
// overwritten.
func (j *boltJournal) Record(_ context.Context, entry Entry) error {
	if entry.BatchID == "" || entry.DeviceID == "" {
		return fmt.Errorf("batch and device ids: %w", model.ErrMissingParameter)
	}

	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshalling entry: %w", err)
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		buck, err := tx.CreateBucketIfNotExists([]byte(batchBucketPrefix + entry.BatchID))
		if err != nil {
			return err
		}

		return buck.Put([]byte(entry.DeviceID), data)
	})
}

// Batch returns entries of the batch ordered by device id.
func (j *boltJournal) Batch(_ context.Context, batchID string) ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(tx *bolt.Tx) error {
		buck := tx.Bucket([]byte(batchBucketPrefix + batchID))
		if buck == nil {
			return model.ErrNotFound
		}

		cur := buck.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshalling entry %s: %w", k, err)
			}

			entries = append(entries, entry)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (j *boltJournal) Close() error {
	return j.db.Close()
}
