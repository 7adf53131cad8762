package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"

	"passage/config"
)

// CurrentSchemaVersion identifies the snapshot layout. Bump it when the
// bucket layout or record encoding changes.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

// SchemaInfo records the layout version a snapshot was written with and
// the hash of the index configuration it was built under.
type SchemaInfo struct {
	Version    int
	ConfigHash string
}

func (s *CorpusStore) SchemaInfo() (SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if data := b.Get(keySchemaVersion); data != nil {
			v, err := strconv.Atoi(string(data))
			if err != nil {
				return fmt.Errorf("corrupt schema version %q: %w", data, err)
			}
			info.Version = v
		}
		if data := b.Get(keyConfigHash); data != nil {
			info.ConfigHash = string(data)
		}
		return nil
	})
	return info, err
}

func (s *CorpusStore) SetSchemaInfo(info SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if err := b.Put(keySchemaVersion, []byte(strconv.Itoa(info.Version))); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// ComputeConfigHash hashes the configuration knobs the built artifacts
// depend on. A change means the index must be rebuilt even when the
// corpus itself is unchanged.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		NGramMin    int `json:"ngram_min"`
		NGramMax    int `json:"ngram_max"`
		MaxFeatures int `json:"max_features"`
		AnnoyTrees  int `json:"annoy_trees"`
	}{
		NGramMin:    cfg.Index.NGramMin,
		NGramMax:    cfg.Index.NGramMax,
		MaxFeatures: cfg.Index.MaxFeatures,
		AnnoyTrees:  cfg.Index.AnnoyTrees,
	}
	data, _ := json.Marshal(relevant)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// MigrationResult describes what CheckMigration found.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration reports whether the snapshot needs a schema stamp or a
// full rebuild under the given configuration.
func (s *CorpusStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.SchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to read schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("snapshot written by a newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	if info.ConfigHash != "" && info.ConfigHash != ComputeConfigHash(cfg) {
		result.NeedsRebuild = true
		result.Reason = "index configuration changed"
	}
	return result, nil
}

// Migrate stamps the snapshot with the current schema version and the
// configuration hash. Call it after a successful build.
func (s *CorpusStore) Migrate(cfg *config.Config) error {
	return s.SetSchemaInfo(SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
	})
}

// VerifySchema rejects snapshots written by a newer layout version.
// Older snapshots pass; they are migrated on the next index run.
func (s *CorpusStore) VerifySchema() error {
	info, err := s.SchemaInfo()
	if err != nil {
		return err
	}
	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("snapshot written by a newer version (v%d > v%d), re-run 'passage index'",
			info.Version, CurrentSchemaVersion)
	}
	return nil
}

// Clear drops the snapshot contents and bookkeeping but keeps the
// schema stamp.
func (s *CorpusStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocuments); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(bucketDocuments); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Delete(keyCorpusHash); err != nil {
			return err
		}
		return meta.Delete(keyStats)
	})
}
