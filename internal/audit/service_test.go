package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ferdiebergado/gdprkit/internal/audit"
)

func TestService_Record(t *testing.T) {
	t.Parallel()

	var got audit.Entry
	repo := &audit.StubRepo{
		InsertFunc: func(_ context.Context, e *audit.Entry) error {
			got = *e
			return nil
		},
	}

	svc := audit.NewService(repo)
	if err := svc.Record(context.Background(), audit.Entry{Action: audit.ActionProfileRead, IPAddress: "198.51.100.77"}); err != nil {
		t.Fatalf("svc.Record() = %v", err)
	}

	if got.IPAddress != "198.51.100.0" {
		t.Errorf("got.IPAddress = %q, want: %q", got.IPAddress, "198.51.100.0")
	}
}

func TestService_Purge(t *testing.T) {
	t.Parallel()

	before := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		batches []int
		failAt  int
		want    int
		wantErr bool
	}{
		{name: "Stops on a short batch", batches: []int{10, 10, 3}, failAt: -1, want: 23},
		{name: "Nothing to delete", batches: []int{0}, failAt: -1, want: 0},
		{name: "Keeps the count on failure", batches: []int{10, 10}, failAt: 1, want: 10, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			call := 0
			repo := &audit.StubRepo{
				DeleteBeforeFunc: func(_ context.Context, b time.Time, limit int) (int, error) {
					defer func() { call++ }()
					if !b.Equal(before) || limit != 10 {
						return 0, errors.New("unexpected arguments")
					}
					if call == tc.failAt {
						return 0, errors.New("db error")
					}
					return tc.batches[call], nil
				},
			}

			n, err := audit.NewService(repo).Purge(context.Background(), before, 10)
			if (err != nil) != tc.wantErr {
				t.Fatalf("svc.Purge() error = %v, wantErr: %t", err, tc.wantErr)
			}

			if n != tc.want {
				t.Errorf("svc.Purge() = %d, want: %d", n, tc.want)
			}
		})
	}
}
