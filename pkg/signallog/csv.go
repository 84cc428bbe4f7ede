package signallog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/betbot/quanttrader/pkg/timeseries"
)

// CSVStore 每个 key 一个 CSV 文件（timestamp,signal），写入走 tmp+rename。
type CSVStore struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewCSVStore 创建 CSV 存储
func NewCSVStore(baseDir string) (*CSVStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("csv signal store: base dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &CSVStore{baseDir: baseDir, locks: make(map[string]*sync.RWMutex)}, nil
}

func (s *CSVStore) lock(key string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[key] = l
	}
	return l
}

func (s *CSVStore) filePath(key string) string {
	return filepath.Join(s.baseDir, key+".csv")
}

func (s *CSVStore) Append(ctx context.Context, key string, series timeseries.Series) (timeseries.MergeStats, error) {
	k, err := validKey(key)
	if err != nil {
		return timeseries.MergeStats{}, err
	}
	incoming := series.DropNaN()
	if len(incoming) == 0 {
		return timeseries.MergeStats{}, nil
	}

	l := s.lock(k)
	l.Lock()
	defer l.Unlock()

	existing, err := s.read(k)
	if err != nil && !errors.Is(err, ErrNotExists) {
		return timeseries.MergeStats{}, err
	}
	merged, stats := timeseries.Merge(existing, incoming)
	if err := s.write(k, merged); err != nil {
		return timeseries.MergeStats{}, err
	}
	logMerge(k, stats)
	return stats, nil
}

func (s *CSVStore) Load(ctx context.Context, key string) (timeseries.Series, error) {
	k, err := validKey(key)
	if err != nil {
		return nil, err
	}
	l := s.lock(k)
	l.RLock()
	defer l.RUnlock()
	return s.read(k)
}

func (s *CSVStore) Last(ctx context.Context, key string) (timeseries.Point, error) {
	series, err := s.Load(ctx, key)
	if err != nil {
		return timeseries.Point{}, err
	}
	p, ok := series.Last()
	if !ok {
		return timeseries.Point{}, ErrNotExists
	}
	return p, nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) read(key string) (timeseries.Series, error) {
	f, err := os.Open(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExists
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	var out timeseries.Series
	header := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if header {
			header = false
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("read %s: bad timestamp %q: %w", key, rec[0], err)
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("read %s: bad value %q: %w", key, rec[1], err)
		}
		out = append(out, timeseries.Point{Time: ts, Value: v})
	}
	if len(out) == 0 {
		return nil, ErrNotExists
	}
	return out, nil
}

func (s *CSVStore) write(key string, series timeseries.Series) error {
	path := s.filePath(key)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"timestamp", "signal"})
	for _, p := range series {
		_ = w.Write([]string{
			p.Time.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(p.Value, 'g', -1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
