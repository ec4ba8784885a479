package cache

import (
	"testing"
	"time"
)

func TestTTLGetBeforeAndAfterExpiry(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.SetNow(func() time.Time { return now })

	c.Set("a", 1)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1 before expiry, got %d (ok=%v)", v, ok)
	}

	now = now.Add(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired before its TTL elapsed")
	}

	now = now.Add(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry still visible at exactly TTL")
	}
}

func TestTTLSetRefreshesExpiry(t *testing.T) {
	c := NewTTL[string, string](time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.SetNow(func() time.Time { return now })

	c.Set("agent", "online")
	now = now.Add(45 * time.Second)
	c.Set("agent", "online")
	now = now.Add(45 * time.Second)

	if _, ok := c.Get("agent"); !ok {
		t.Fatal("refreshed entry should survive past the original expiry")
	}
}

func TestTTLItemsSkipsExpired(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.SetNow(func() time.Time { return now })

	c.Set("old", 1)
	now = now.Add(2 * time.Minute)
	c.Set("fresh", 2)

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 live item, got %d", len(items))
	}
	if _, ok := items["fresh"]; !ok {
		t.Fatal("live item missing from snapshot")
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len 1, got %d", c.Len())
	}
}

func TestTTLSweepEvictsExpired(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.SetNow(func() time.Time { return now })

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(2 * time.Minute)
	c.Set("c", 3)

	c.sweep()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) != 1 {
		t.Fatalf("expected sweep to leave 1 entry, got %d", len(c.entries))
	}
	if _, ok := c.entries["c"]; !ok {
		t.Fatal("sweep evicted a live entry")
	}
}

func TestTTLStartStop(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	c.SetSweepInterval(10 * time.Millisecond)
	c.Start()
	c.Set("a", 1)
	c.Stop()

	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry lost while janitor was running")
	}
}
