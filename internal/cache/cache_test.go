package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func testSnapshot() *domain.PlanVersion {
	return &domain.PlanVersion{
		ID:            "version-001",
		PlanID:        "plan-001",
		VersionNumber: 3,
		Metrics: []domain.PlanMetric{
			{
				ID:   "metric-001",
				Name: "PSI",
				Thresholds: domain.ThresholdSet{
					YellowMax: domain.Float(0.1),
					RedMax:    domain.Float(0.25),
				},
			},
		},
		PublishedAt: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, tenantID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, tenantID, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, tenantID, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, tenantID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		c := NewLRUCache(10)
		c.now = clock.now

		_ = c.Set(ctx, tenantID, "expiring", []byte("temp"), time.Minute)

		if val, _ := c.Get(ctx, tenantID, "expiring"); val == nil {
			t.Error("expected value before expiration")
		}

		clock.advance(2 * time.Minute)

		if val, _ := c.Get(ctx, tenantID, "expiring"); val != nil {
			t.Error("expected nil after expiration")
		}
		if size, _ := c.Stats(); size != 0 {
			t.Errorf("expected expired entry to be removed, size %d", size)
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, tenantID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

		// Touch 'a' so 'b' is the least recently used
		_, _ = smallCache.Get(ctx, tenantID, "a")

		_ = smallCache.Set(ctx, tenantID, "d", []byte("4"), time.Minute)

		if val, _ := smallCache.Get(ctx, tenantID, "b"); val != nil {
			t.Error("expected 'b' to be evicted")
		}
		if val, _ := smallCache.Get(ctx, tenantID, "a"); val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "tenant-001", "shared-key", []byte("tenant1-value"), time.Minute)
		_ = cache.Set(ctx, "tenant-002", "shared-key", []byte("tenant2-value"), time.Minute)

		val1, _ := cache.Get(ctx, "tenant-001", "shared-key")
		val2, _ := cache.Get(ctx, "tenant-002", "shared-key")

		if string(val1) != "tenant1-value" {
			t.Errorf("expected 'tenant1-value', got '%s'", string(val1))
		}
		if string(val2) != "tenant2-value" {
			t.Errorf("expected 'tenant2-value', got '%s'", string(val2))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}

		_, err = cache.Get(ctx, "", "key")
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Snapshot", func(t *testing.T) {
		snap := testSnapshot()
		if err := cache.SetSnapshot(ctx, tenantID, snap, time.Hour); err != nil {
			t.Fatalf("SetSnapshot failed: %v", err)
		}

		got, err := cache.GetSnapshot(ctx, tenantID, snap.ID)
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected cached snapshot")
		}
		if got.VersionNumber != 3 {
			t.Errorf("expected version 3, got %d", got.VersionNumber)
		}
		m, ok := got.Metric("metric-001")
		if !ok || *m.Thresholds.RedMax != 0.25 {
			t.Errorf("expected metric thresholds to survive caching, got %+v", m)
		}
		if m.Thresholds.YellowMin != nil {
			t.Error("expected unset bound to stay unset")
		}

		other, err := cache.GetSnapshot(ctx, "tenant-002", snap.ID)
		if err != nil || other != nil {
			t.Errorf("expected miss for other tenant, got %v, %v", other, err)
		}
	})

	t.Run("SnapshotRequiresID", func(t *testing.T) {
		err := cache.SetSnapshot(ctx, tenantID, &domain.PlanVersion{}, time.Hour)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, tenantID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, tenantID, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, tenantID, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		if val, _ := testCache.Get(ctx, tenantID, "k"); val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

// TestTwoPhaseCache needs a reachable Redis; set KESTREL_TEST_REDIS_ADDR to run it.
func TestTwoPhaseCache(t *testing.T) {
	addr := os.Getenv("KESTREL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KESTREL_TEST_REDIS_ADDR not set")
	}

	c, err := NewTwoPhaseCache(domain.CacheConfig{
		Type:           "redis",
		RedisAddr:      addr,
		EnableTwoPhase: true,
		LocalMaxSize:   10,
		LocalTTL:       time.Minute,
	})
	if err != nil {
		t.Fatalf("NewTwoPhaseCache failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	snap := testSnapshot()
	if err := c.SetSnapshot(ctx, "tenant-001", snap, time.Minute); err != nil {
		t.Fatalf("SetSnapshot failed: %v", err)
	}

	// Drop L1 so the read has to come from Redis.
	_ = c.local.Close()

	got, err := c.GetSnapshot(ctx, "tenant-001", snap.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got == nil || got.PlanID != snap.PlanID {
		t.Fatalf("expected snapshot from L2, got %+v", got)
	}
	if size, _ := c.Stats(); size != 1 {
		t.Errorf("expected L2 hit to repopulate L1, size %d", size)
	}

	_ = c.Delete(ctx, "tenant-001", snapshotKey(snap.ID))
}
