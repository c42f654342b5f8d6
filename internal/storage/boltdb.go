// Package storage keeps recently transferred clipboard payloads so a paste of
// content we already hold does not cross the VM boundary again.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/berrythewa/clipbridge/internal/types"
	"github.com/berrythewa/clipbridge/pkg/compression"
)

const (
	payloadBucket = "payloads"
	noticeBucket  = "notices"
	keepItems     = 20 // Number of payloads kept when none is configured
)

var ErrEmptyPayload = errors.New("storage: empty payload")

// Entry is one cached payload. Entries returned by List carry no Data.
type Entry struct {
	CID      string            `json:"cid"`
	NoticeID string            `json:"notice_id"`
	Kind     types.ContentKind `json:"kind"`
	Size     int64             `json:"size"`
	Created  time.Time         `json:"created"`
	Data     []byte            `json:"-"`
}

// record is the on-disk form of an Entry.
type record struct {
	Entry
	Payload    []byte `json:"data"`
	Compressed bool   `json:"compressed,omitempty"`
}

// Options configure Open.
type Options struct {
	DBPath    string
	KeepItems int
	Logger    *zap.Logger
}

// BoltStorage is the bbolt-backed payload cache. Safe for concurrent use.
type BoltStorage struct {
	db        *bbolt.DB
	keepItems int
	logger    *zap.Logger
}

// Open opens or creates the cache database.
func Open(opts Options) (*BoltStorage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	keep := opts.KeepItems
	if keep <= 0 {
		keep = keepItems
	}

	db, err := bbolt.Open(opts.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{payloadBucket, noticeBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Payload cache opened",
		zap.String("db_path", opts.DBPath),
		zap.Int("keep_items", keep))

	return &BoltStorage{db: db, keepItems: keep, logger: logger}, nil
}

// ContentID returns the CIDv1 (raw, sha2-256) naming data.
func ContentID(data []byte) (string, error) {
	h, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	return cid.NewCidV1(cid.Raw, h).String(), nil
}

// Put stores data announced under noticeID and returns its content id.
// Identical payloads share one entry; the newest notice id wins.
func (s *BoltStorage) Put(noticeID string, kind types.ContentKind, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	id, err := ContentID(data)
	if err != nil {
		return "", err
	}

	packed, compressed, err := compression.Compress(data, compression.DefaultThreshold)
	if err != nil {
		return "", fmt.Errorf("compress payload: %w", err)
	}
	rec := record{
		Entry: Entry{
			CID:      id,
			NoticeID: noticeID,
			Kind:     kind,
			Size:     int64(len(data)),
			Created:  time.Now().UTC(),
		},
		Payload:    packed,
		Compressed: compressed,
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		payloads := tx.Bucket([]byte(payloadBucket))
		existed := payloads.Get([]byte(id)) != nil
		if err := payloads.Put([]byte(id), encoded); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(noticeBucket)).Put([]byte(noticeID), []byte(id)); err != nil {
			return err
		}

		s.logger.Debug("Cached payload",
			zap.String("cid", id),
			zap.String("notice_id", noticeID),
			zap.Stringer("kind", kind),
			zap.Int("size", len(data)),
			zap.Bool("dedup", existed))

		_, err := s.pruneTx(tx, s.keepItems)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to store payload: %w", err)
	}
	return id, nil
}

// Lookup returns the payload announced under noticeID, or nil if not cached.
func (s *BoltStorage) Lookup(noticeID string) (*Entry, error) {
	var rec *record
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(noticeBucket)).Get([]byte(noticeID))
		if id == nil {
			return nil
		}
		v := tx.Bucket([]byte(payloadBucket)).Get(id)
		if v == nil {
			return nil
		}
		rec = &record{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read payload for %s: %w", noticeID, err)
	}
	if rec == nil {
		return nil, nil
	}

	entry := rec.Entry
	entry.Data = rec.Payload
	if rec.Compressed {
		entry.Data, err = compression.Decompress(rec.Payload, rec.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to inflate payload %s: %w", rec.CID, err)
		}
	}
	return &entry, nil
}

// List returns cached entries newest first, without payload bytes.
func (s *BoltStorage) List() ([]*Entry, error) {
	var entries []*Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		entries, err = listTx(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list payloads: %w", err)
	}
	return entries, nil
}

// Prune drops all but the keep newest payloads and reports how many went.
func (s *BoltStorage) Prune(keep int) (int, error) {
	var removed int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		removed, err = s.pruneTx(tx, keep)
		return err
	})
	return removed, err
}

// Clear removes every cached payload.
func (s *BoltStorage) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{payloadBucket, noticeBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		s.logger.Info("Payload cache cleared")
		return nil
	})
}

// Close closes the database.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func listTx(tx *bbolt.Tx) ([]*Entry, error) {
	var entries []*Entry
	err := tx.Bucket([]byte(payloadBucket)).ForEach(func(k, v []byte) error {
		var rec record
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		e := rec.Entry
		entries = append(entries, &e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Created.After(entries[j].Created)
	})
	return entries, nil
}

func (s *BoltStorage) pruneTx(tx *bbolt.Tx, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	entries, err := listTx(tx)
	if err != nil {
		return 0, err
	}
	if len(entries) <= keep {
		return 0, nil
	}

	stale := make(map[string]bool)
	payloads := tx.Bucket([]byte(payloadBucket))
	for _, e := range entries[keep:] {
		if err := payloads.Delete([]byte(e.CID)); err != nil {
			return 0, err
		}
		stale[e.CID] = true
	}

	// collect first: bbolt forbids deleting while iterating with ForEach
	notices := tx.Bucket([]byte(noticeBucket))
	var orphaned [][]byte
	err = notices.ForEach(func(k, v []byte) error {
		if stale[string(v)] {
			orphaned = append(orphaned, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range orphaned {
		if err := notices.Delete(k); err != nil {
			return 0, err
		}
	}

	s.logger.Debug("Pruned payload cache",
		zap.Int("removed", len(stale)),
		zap.Int("kept", keep))
	return len(stale), nil
}
