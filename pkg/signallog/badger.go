package signallog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/betbot/quanttrader/pkg/timeseries"
)

// BadgerStore keeps every point as its own KV pair:
//
//	sig/<key>/<unix-nano big-endian> -> float64 bits
//
// Overwriting a timestamp is a plain Set, so last write wins without a read.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a Badger directory. An empty path opens
// an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	var opts badger.Options
	if strings.TrimSpace(path) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger signal store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerPrefix(key string) []byte {
	return []byte("sig/" + key + "/")
}

func badgerKey(key string, t time.Time) []byte {
	p := badgerPrefix(key)
	out := make([]byte, len(p)+8)
	copy(out, p)
	binary.BigEndian.PutUint64(out[len(p):], uint64(t.UnixNano()))
	return out
}

func decodePoint(prefixLen int, k, v []byte) (timeseries.Point, error) {
	if len(k) != prefixLen+8 || len(v) != 8 {
		return timeseries.Point{}, fmt.Errorf("corrupt signal entry %q", k)
	}
	ns := int64(binary.BigEndian.Uint64(k[prefixLen:]))
	return timeseries.Point{
		Time:  time.Unix(0, ns).UTC(),
		Value: math.Float64frombits(binary.BigEndian.Uint64(v)),
	}, nil
}

func (s *BadgerStore) Append(ctx context.Context, key string, series timeseries.Series) (timeseries.MergeStats, error) {
	k, err := validKey(key)
	if err != nil {
		return timeseries.MergeStats{}, err
	}
	incoming := series.DropNaN().Dedupe()
	if len(incoming) == 0 {
		return timeseries.MergeStats{}, nil
	}

	var stats timeseries.MergeStats
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, p := range incoming {
			bk := badgerKey(k, p.Time)
			_, err := txn.Get(bk)
			switch {
			case err == nil:
				stats.Updated++
			case errors.Is(err, badger.ErrKeyNotFound):
				stats.Appended++
			default:
				return err
			}
			val := make([]byte, 8)
			binary.BigEndian.PutUint64(val, math.Float64bits(p.Value))
			if err := txn.Set(bk, val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return timeseries.MergeStats{}, fmt.Errorf("append %s: %w", k, err)
	}
	logMerge(k, stats)
	return stats, nil
}

func (s *BadgerStore) Load(ctx context.Context, key string) (timeseries.Series, error) {
	k, err := validKey(key)
	if err != nil {
		return nil, err
	}
	prefix := badgerPrefix(k)
	var out timeseries.Series
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			p, err := decodePoint(len(prefix), item.Key(), v)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotExists
	}
	return out, nil
}

func (s *BadgerStore) Last(ctx context.Context, key string) (timeseries.Point, error) {
	k, err := validKey(key)
	if err != nil {
		return timeseries.Point{}, err
	}
	prefix := badgerPrefix(k)
	var (
		out   timeseries.Point
		found bool
	)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out, err = decodePoint(len(prefix), item.Key(), v)
		found = err == nil
		return err
	})
	if err != nil {
		return timeseries.Point{}, err
	}
	if !found {
		return timeseries.Point{}, ErrNotExists
	}
	return out, nil
}

func (s *BadgerStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
