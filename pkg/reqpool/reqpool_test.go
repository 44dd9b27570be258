package reqpool

import (
	"context"
	"errors"
	"testing"
)

func TestJoinCollectsResultsInOrder(t *testing.T) {
	p := New(4)
	reqs := []Request[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 2, nil },
		func(ctx context.Context) (int, error) { return 3, nil },
	}
	got, err := Join(context.Background(), p, reqs)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Join()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestJoinPropagatesFirstError(t *testing.T) {
	p := New(2)
	boom := errors.New("boom")
	reqs := []Request[int]{
		func(ctx context.Context) (int, error) { return 0, boom },
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	}
	if _, err := Join(context.Background(), p, reqs); err == nil {
		t.Fatal("expected Join to propagate an error")
	}
}

func TestJoinRespectsConcurrencyLimit(t *testing.T) {
	p := New(1)
	running := 0
	maxSeen := 0
	reqs := make([]Request[struct{}], 5)
	for i := range reqs {
		reqs[i] = func(ctx context.Context) (struct{}, error) {
			running++
			if running > maxSeen {
				maxSeen = running
			}
			running--
			return struct{}{}, nil
		}
	}
	if _, err := Join(context.Background(), p, reqs); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if maxSeen > 1 {
		t.Fatalf("observed %d concurrent requests, want at most 1", maxSeen)
	}
}
