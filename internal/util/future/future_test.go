package future

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAwait(t *testing.T) {
	errFailed := errors.New("failure")

	testCases := []struct {
		name    string
		future  *Future[int]
		wantVal int
		wantErr error
	}{
		{
			name:    "resolved",
			future:  Resolved(42),
			wantVal: 42,
		},
		{
			name:    "rejected",
			future:  Rejected[int](errFailed),
			wantErr: errFailed,
		},
		{
			name: "delayed value",
			future: New(func() (int, error) {
				time.Sleep(5 * time.Millisecond)
				return 100, nil
			}),
			wantVal: 100,
		},
		{
			name: "delayed error",
			future: New(func() (int, error) {
				time.Sleep(5 * time.Millisecond)
				return 0, errFailed
			}),
			wantErr: errFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			val, err := tc.future.Await()
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error: %v, got: %v", tc.wantErr, err)
			}
			if val != tc.wantVal {
				t.Fatalf("expected value: %d, got: %d", tc.wantVal, val)
			}
			if !tc.future.IsDone() {
				t.Fatalf("future not done after Await")
			}
		})
	}
}

func TestAwaitContext(t *testing.T) {
	release := make(chan struct{})
	f := New(func() (string, error) {
		<-release
		return "done", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.AwaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a deadline error, got %v", err)
	}
	if f.IsDone() {
		t.Fatal("future completed early")
	}

	close(release)
	v, err := f.AwaitContext(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("got %q, %v", v, err)
	}
	select {
	case <-f.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}

func TestPanicCompletesWithError(t *testing.T) {
	f := New(func() (int, error) {
		var m map[string]int
		m["x"] = 1
		return 1, nil
	})
	_, err := f.Await()
	if err == nil || !strings.HasPrefix(err.Error(), "panic: ") {
		t.Fatalf("got %v", err)
	}
}
