package app

import (
	"context"
	"testing"
	"time"
)

func TestNextRun(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 10, 18, 5, 59, 0, 0, msk),
			want: time.Date(2026, 10, 18, 6, 0, 0, 0, msk),
		},
		{
			name: "exactly at trigger moves to tomorrow",
			now:  time.Date(2026, 10, 18, 6, 0, 0, 0, msk),
			want: time.Date(2026, 10, 19, 6, 0, 0, 0, msk),
		},
		{
			name: "after trigger",
			now:  time.Date(2026, 10, 18, 23, 30, 0, 0, msk),
			want: time.Date(2026, 10, 19, 6, 0, 0, 0, msk),
		},
		{
			name: "utc clock before local midnight",
			now:  time.Date(2026, 10, 31, 22, 0, 0, 0, time.UTC), // 01:00 Nov 1 in MSK
			want: time.Date(2026, 11, 1, 6, 0, 0, 0, msk),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRun(tt.now, 6, 0, msk)
			if !got.Equal(tt.want) {
				t.Errorf("NextRun() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler(6, 0, time.UTC, func(ctx context.Context) {
		t.Errorf("job must not run before its time")
	}, quietLogger())

	stopped := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(stopped)
	}()

	s.Stop()
	s.Stop()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
