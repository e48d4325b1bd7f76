package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seenimoa/tradelens/internal/config"
)

type headline struct {
	Title string `json:"title"`
}

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	if err := c.Set(ctx, "k", []headline{{Title: "Fed holds"}}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got []headline
	if err := c.Get(ctx, "k", &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "Fed holds" {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryMissAndExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Now()
	c.now = func() time.Time { return now }

	var v string
	if err := c.Get(ctx, "absent", &v); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss", err)
	}

	c.Set(ctx, "short", "x", time.Second)
	c.Set(ctx, "forever", "y", 0)
	now = now.Add(2 * time.Second)

	if err := c.Get(ctx, "short", &v); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired entry: got %v, want ErrMiss", err)
	}
	if err := c.Get(ctx, "forever", &v); err != nil || v != "y" {
		t.Fatalf("zero ttl should not expire: %q, %v", v, err)
	}

	c.Cleanup()
	if c.Len() != 1 {
		t.Fatalf("Cleanup: got %d entries, want 1", c.Len())
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	c.Set(ctx, "k", 1, time.Minute)
	c.Delete(ctx, "k")

	var n int
	if err := c.Get(ctx, "k", &n); !errors.Is(err, ErrMiss) {
		t.Fatalf("got %v, want ErrMiss", err)
	}
}

func TestNewFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	if _, ok := New(ctx, config.RedisConfig{}).(*Memory); !ok {
		t.Fatal("disabled redis should yield memory cache")
	}

	c := New(ctx, config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"})
	if _, ok := c.(*Memory); !ok {
		t.Fatalf("unreachable redis should fall back to memory, got %T", c)
	}
}
