package cache

import (
	"errors"
	"testing"
	"time"
)

func TestExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewInMemoryCache[string, float64](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("BTCUSDT", 0.001, 0)
	if v, ok := c.Get("BTCUSDT"); !ok || v != 0.001 {
		t.Fatalf("Get()=%v,%v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("BTCUSDT"); ok {
		t.Fatalf("expected expired entry")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry should be removed, size=%d", c.Size())
	}
}

func TestGetOrLoad(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Hour)
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("k", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad()=%d,%v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	_, err := c.GetOrLoad("bad", func() (int, error) { return 0, errors.New("down") })
	if err == nil {
		t.Fatalf("expected loader error")
	}
	if _, ok := c.Get("bad"); ok {
		t.Errorf("failed load must not be cached")
	}
}
