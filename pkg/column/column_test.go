package column

import (
	"context"
	"testing"
	"time"

	"github.com/cluso/lsmkv/pkg/env"
	"github.com/cluso/lsmkv/pkg/logging"
	"github.com/cluso/lsmkv/pkg/lsm"
)

func openTestColumn(t *testing.T, desc Descriptor) (*Column, *env.Environment) {
	t.Helper()
	e := env.New(env.Options{})
	t.Cleanup(func() { e.Join() })

	c, err := Open(e, 1, desc, t.TempDir(), logging.NewDefaultLogger(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, e
}

func TestOpenDefaultsComparatorFromKeyType(t *testing.T) {
	c, _ := openTestColumn(t, Descriptor{Name: "a", KeyType: KeyTypeUint64})
	if c.Descriptor().Comparator == nil {
		t.Fatal("expected a comparator to be deduced from KeyType")
	}
}

func TestStallStartsNormalAndTracksLevelZero(t *testing.T) {
	c, _ := openTestColumn(t, Descriptor{Name: "a"})
	if c.Stall() != StallNormal {
		t.Fatalf("Stall() = %v, want StallNormal", c.Stall())
	}
	c.refreshStall()
	if c.Stall() != StallNormal {
		t.Fatalf("Stall() after refresh with no tables = %v, want StallNormal", c.Stall())
	}
}

func TestWaitForRoomReturnsImmediatelyWhenNotStopped(t *testing.T) {
	c, _ := openTestColumn(t, Descriptor{Name: "a"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.WaitForRoom(ctx); err != nil {
		t.Fatalf("WaitForRoom: %v", err)
	}
}

func TestWaitForRoomUnblocksOnStallClear(t *testing.T) {
	c, _ := openTestColumn(t, Descriptor{Name: "a"})
	c.mu.Lock()
	c.stall = StallStopped
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- c.WaitForRoom(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("WaitForRoom returned before stall cleared")
	case <-time.After(50 * time.Millisecond):
	}

	c.mu.Lock()
	c.stall = StallNormal
	c.mu.Unlock()
	c.stallMu.Lock()
	c.stallCond.Broadcast()
	c.stallMu.Unlock()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForRoom: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForRoom did not unblock after stall cleared")
	}
}

func TestNextSeqIsMonotonic(t *testing.T) {
	c, _ := openTestColumn(t, Descriptor{Name: "a"})
	a := c.NextSeq()
	b := c.NextSeq()
	if b <= a {
		t.Fatalf("NextSeq() not monotonic: %d then %d", a, b)
	}
}

func TestEngineAndWALAreUsable(t *testing.T) {
	c, _ := openTestColumn(t, Descriptor{Name: "a"})
	if err := c.Engine().Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Engine().Put: %v", err)
	}
	if _, err := c.WAL().Append(lsm.OpPut, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("WAL().Append: %v", err)
	}
	got, err := c.Engine().Get([]byte("k"))
	if err != nil || string(got) != "v" {
		t.Fatalf("Engine().Get = %q, %v", got, err)
	}
}
