package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"passage/internal/domain"
	"passage/internal/port"
)

var (
	bucketDocuments = []byte("documents")
	bucketMeta      = []byte("meta")
	keyCorpusHash   = []byte("corpus_hash")
	keyStats        = []byte("corpus_stats")
)

// CorpusStore persists the loaded corpus snapshot so query-time flows can
// resolve document ids to texts without re-reading the corpus source.
type CorpusStore struct {
	db *bbolt.DB
}

var _ port.CorpusStore = (*CorpusStore)(nil)

func NewCorpusStore(path string) (*CorpusStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CorpusStore{db: db}, nil
}

func (s *CorpusStore) Close() error {
	return s.db.Close()
}

type docRecord struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Reset replaces the whole snapshot with docs and records the corpus
// hash the snapshot was built from.
func (s *CorpusStore) Reset(docs []domain.Document, hash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocuments); err != nil {
			return fmt.Errorf("failed to clear documents bucket: %w", err)
		}
		b, err := tx.CreateBucket(bucketDocuments)
		if err != nil {
			return fmt.Errorf("failed to recreate documents bucket: %w", err)
		}

		for _, doc := range docs {
			data, err := json.Marshal(docRecord{Title: doc.Title, Text: doc.Text})
			if err != nil {
				return err
			}
			if err := b.Put(itob(doc.ID), data); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put(keyCorpusHash, []byte(hash))
	})
}

// Document fetches a single document by id.
func (s *CorpusStore) Document(id int) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get(itob(id))
		if data == nil {
			return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		var rec docRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		doc = domain.Document{ID: id, Title: rec.Title, Text: rec.Text}
		return nil
	})
	return doc, err
}

// Documents returns the whole snapshot ordered by id.
func (s *CorpusStore) Documents() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		return b.ForEach(func(k, v []byte) error {
			var rec docRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			docs = append(docs, domain.Document{
				ID:    btoi(k),
				Title: rec.Title,
				Text:  rec.Text,
			})
			return nil
		})
	})
	return docs, err
}

func (s *CorpusStore) Count() (int, error) {
	var count int
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketDocuments).Stats().KeyN
		return nil
	})
	return count, err
}

// Hash returns the corpus hash the snapshot was built from, or the empty
// string for a fresh store.
func (s *CorpusStore) Hash() (string, error) {
	var hash string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyCorpusHash); data != nil {
			hash = string(data)
		}
		return nil
	})
	return hash, err
}

func (s *CorpusStore) SetStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyStats, data)
	})
}

func (s *CorpusStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

// ComputeCorpusHash hashes the normalized corpus texts in id order.
// Artifacts tagged with a different hash were built from a different
// corpus and must be rebuilt. Normalized texts cannot contain newlines,
// so a newline separator keeps the digest unambiguous.
func ComputeCorpusHash(docs []domain.Document) string {
	h := sha256.New()
	for _, doc := range docs {
		h.Write([]byte(doc.Text))
		h.Write([]byte("\n"))
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

func itob(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}
