// Package recordstore persists candidate records in a local pebble database.
// Records are JSON-like documents, stored as protobuf Struct values keyed by
// record ID.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/inngest/tristate/internal/logging"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("record not found")

var (
	recordPrefix = []byte("r/")
	// recordUpper is the exclusive upper bound of the record keyspace.
	recordUpper = []byte("r0")
)

// Options configures Open.
type Options struct {
	// FS overrides the filesystem, eg. vfs.NewMem() in tests.
	FS     vfs.FS
	Logger *slog.Logger
}

// Store is a record store.  It is safe for concurrent use.
type Store struct {
	db  *pebble.DB
	log *slog.Logger
}

// Open opens or creates the store in dir.
func Open(dir string, opts Options) (*Store, error) {
	log := logging.Default(opts.Logger).With("component", "recordstore", "dir", dir)

	popts := &pebble.Options{}
	if opts.FS != nil {
		popts.FS = opts.FS
	}
	db, err := pebble.Open(dir, popts)
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}
	log.Info("record store opened")
	return &Store{db: db, log: log}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.log.Info("record store closed")
	return s.db.Close()
}

func recordKey(id string) []byte {
	return append(append([]byte{}, recordPrefix...), id...)
}

// Put stores doc under id, replacing any previous record.
func (s *Store) Put(id string, doc map[string]any) error {
	st, err := structpb.NewStruct(doc)
	if err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	return s.db.Set(recordKey(id), data, pebble.Sync)
}

// PutBatch stores many records in one atomic write.
func (s *Store) PutBatch(docs map[string]map[string]any) error {
	b := s.db.NewBatch()
	defer b.Close()

	for id, doc := range docs {
		st, err := structpb.NewStruct(doc)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		data, err := proto.Marshal(st)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		if err := b.Set(recordKey(id), data, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Get returns the record stored under id.
func (s *Store) Get(id string) (map[string]any, error) {
	data, closer, err := s.db.Get(recordKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decode(data)
}

// Delete removes the record stored under id.  Deleting an unknown id is not an
// error.
func (s *Store) Delete(id string) error {
	return s.db.Delete(recordKey(id), pebble.Sync)
}

// Scan calls fn for every record in ID order.  It stops at the first error
// returned by fn, or when ctx is cancelled.
func (s *Store) Scan(ctx context.Context, fn func(id string, doc map[string]any) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: recordPrefix,
		UpperBound: recordUpper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := iter.ValueAndErr()
		if err != nil {
			return err
		}
		doc, err := decode(data)
		if err != nil {
			return err
		}
		id := string(iter.Key()[len(recordPrefix):])
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	return iter.Error()
}

func decode(data []byte) (map[string]any, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return st.AsMap(), nil
}
