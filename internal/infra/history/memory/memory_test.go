package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/vietddude/remedy/internal/core/domain"
)

func TestStore_NewestFirstAndBounded(t *testing.T) {
	s := New(3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		err := s.Record(ctx, domain.RecoveryExecution{
			ID:      fmt.Sprintf("exec-%d", i),
			Service: "cache",
			Status:  domain.ExecutionSucceeded,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, want := range []string{"exec-5", "exec-4", "exec-3"} {
		if got[i].ID != want {
			t.Errorf("record %d = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestStore_RecentLimit(t *testing.T) {
	s := New(10)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = s.Record(ctx, domain.RecoveryExecution{ID: fmt.Sprintf("exec-%d", i)})
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "exec-3" {
		t.Fatalf("unexpected records: %v", got)
	}
}
