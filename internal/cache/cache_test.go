package cache

import (
	"context"
	"testing"
	"time"

	"finpilot/internal/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUCache_ExpiryIsSliding(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewLRUCache[int](10, time.Minute)
	c.now = clock.now

	c.Set("a", 1)
	clock.t = clock.t.Add(50 * time.Second)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	clock.t = clock.t.Add(50 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected read to extend lifetime")
	}

	clock.t = clock.t.Add(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Errorf("expected expired entry to be removed, size %d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to remain", k)
		}
	}
}

func TestManager_CleanNow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRUCache[int](10, time.Second)
	c.now = clock.now
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager()
	m.Register(c)
	clock.t = clock.t.Add(2 * time.Second)
	c.Set("c", 3)

	if n := m.CleanNow(); n != 2 {
		t.Errorf("expected 2 entries cleaned, got %d", n)
	}
	if c.Size() != 1 {
		t.Errorf("expected 1 entry left, got %d", c.Size())
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore(10, time.Hour)
	key := SessionKey("u1", "s1")

	h, err := s.Load(ctx, key)
	if err != nil || h != nil {
		t.Fatalf("expected empty session, got %v, %v", h, err)
	}

	history := []core.ChatMessage{{Role: core.RoleUser, Content: "hi"}}
	if err := s.Save(ctx, key, history); err != nil {
		t.Fatalf("Save: %v", err)
	}
	history[0].Content = "mutated"

	h, _ = s.Load(ctx, key)
	if len(h) != 1 || h[0].Content != "hi" {
		t.Errorf("expected stored copy, got %+v", h)
	}
	if other, _ := s.Load(ctx, SessionKey("u2", "s1")); other != nil {
		t.Errorf("expected sessions to be scoped by user, got %+v", other)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if h, _ := s.Load(ctx, key); h != nil {
		t.Errorf("expected deleted session, got %+v", h)
	}
}

func TestHistoryEncoding(t *testing.T) {
	in := []core.ChatMessage{
		{Role: core.RoleUser, Content: "How am I doing?"},
		{Role: core.RoleAssistant, Content: "Net worth is up."},
	}
	val, err := encodeHistory(in)
	if err != nil {
		t.Fatalf("encodeHistory: %v", err)
	}
	out, err := decodeHistory(val)
	if err != nil {
		t.Fatalf("decodeHistory: %v", err)
	}
	if len(out) != 2 || out[1] != in[1] {
		t.Errorf("unexpected history %+v", out)
	}

	if val, _ := encodeHistory(nil); val != "[]" {
		t.Errorf("expected nil history to encode as [], got %q", val)
	}
	if _, err := decodeHistory("{"); err == nil {
		t.Error("expected decode error")
	}
	if redisKey(SessionKey("u1", "s1")) != "finpilot:chat:u1:s1" {
		t.Errorf("unexpected redis key %q", redisKey(SessionKey("u1", "s1")))
	}
}
