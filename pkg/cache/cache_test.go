package cache

import "testing"

func TestCacheTracksHitsAndMisses(t *testing.T) {
	c := New(Options{CapacityBytes: 1024})
	c.Insert("k", []byte("v"), 8)

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit for inserted key")
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for absent key")
	}

	if c.Hits() != 1 || c.Misses() != 1 {
		t.Fatalf("Hits=%d Misses=%d, want 1 and 1", c.Hits(), c.Misses())
	}
	if rate := c.HitRate(); rate != 0.5 {
		t.Fatalf("HitRate = %f, want 0.5", rate)
	}
}

func TestCacheWithArenaCopiesIntoArena(t *testing.T) {
	c := New(Options{CapacityBytes: 1024, UseArena: true})
	original := []byte("hello")
	c.Insert("k", original, int64(len(original)))

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != "hello" {
		t.Fatalf("Get = %q, want hello", got)
	}
}

func TestAllocatorFallsBackWhenArenaFull(t *testing.T) {
	a := NewAllocator(4)
	if _, ok := a.Copy([]byte("toolong")); ok {
		t.Fatal("expected Copy to fail when source exceeds arena size")
	}
	if _, ok := a.Copy([]byte("ok")); !ok {
		t.Fatal("expected Copy to succeed for a slab that fits")
	}
}
