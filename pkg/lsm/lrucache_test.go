package lsm

import "testing"

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(30)
	c.Insert("a", []byte("1"), 10)
	c.Insert("b", []byte("2"), 10)
	c.Insert("c", []byte("3"), 10)

	// Touch "a" so "b" becomes the least recently used entry.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be present")
	}
	c.Insert("d", []byte("4"), 10)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should still be present after being touched")
	}
	if _, ok := c.Get("d"); !ok {
		t.Fatal("d should be present as the most recent insert")
	}
}

func TestLRUCacheSetCapacityEvictsImmediately(t *testing.T) {
	c := NewLRUCache(100)
	c.Insert("a", []byte("1"), 50)
	c.Insert("b", []byte("2"), 50)
	c.SetCapacity(50)
	if c.Usage() > 50 {
		t.Fatalf("usage %d exceeds new capacity 50 after SetCapacity", c.Usage())
	}
}
