package snapshots

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wb-seller-stats/database"
	"wb-seller-stats/helpers"
)

var today = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func openStore(t *testing.T, path string, now time.Time) (*Repository, *database.Database) {
	t.Helper()
	db, err := database.Connect(database.DriverSQLite, path)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	repo, err := NewRepository(context.Background(), db.DB(), DefaultRetentionDays, now)
	if err != nil {
		db.Close()
		t.Fatalf("NewRepository() error = %v", err)
	}
	return repo, db
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, db := openStore(t, filepath.Join(t.TempDir(), "stocks.db"), today)
	t.Cleanup(func() { db.Close() })
	return repo
}

func TestSaveUpsertsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	yesterday := helpers.AddDays(today, -1)

	if err := repo.Save(ctx, map[int64]int{100: 5, 200: 7}, yesterday); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, map[int64]int{100: 3}, today); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, map[int64]int{100: 9}, today); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok, err := repo.Get(ctx, 100, today)
	if err != nil || !ok || got != 9 {
		t.Errorf("Get(100, today) = %d, %v, %v; want 9, true, nil", got, ok, err)
	}

	prev, err := repo.GetAll(ctx, yesterday)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(prev) != 2 || prev[100] != 5 || prev[200] != 7 {
		t.Errorf("GetAll(yesterday) = %v, other days must be untouched", prev)
	}
}

func TestGetAbsent(t *testing.T) {
	repo := newTestRepo(t)
	got, ok, err := repo.Get(context.Background(), 42, today)
	if err != nil || ok || got != 0 {
		t.Errorf("Get() = %d, %v, %v; want 0, false, nil", got, ok, err)
	}
	all, err := repo.GetAll(context.Background(), today)
	if err != nil || len(all) != 0 {
		t.Errorf("GetAll() = %v, %v; want empty", all, err)
	}
}

func TestSaveIgnoresTimeOfDay(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	morning := today.Add(6 * time.Hour)
	evening := today.Add(21 * time.Hour)

	repo.Save(ctx, map[int64]int{1: 10}, morning)
	repo.Save(ctx, map[int64]int{1: 11}, evening)

	all, _ := repo.GetAll(ctx, today)
	if len(all) != 1 || all[1] != 11 {
		t.Errorf("GetAll() = %v, want one row per calendar day", all)
	}
}

func TestSaveRejectsInvalidArticle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	err := repo.Save(ctx, map[int64]int{1: 1, -5: 2}, today)
	if !database.IsValidationError(err) {
		t.Fatalf("Save() error = %v, want validation error", err)
	}
	all, _ := repo.GetAll(ctx, today)
	if len(all) != 0 {
		t.Errorf("rejected batch must not be partially written, got %v", all)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for i := 0; i < 10; i++ {
		if err := repo.Save(ctx, map[int64]int{1: i, 2: i * 2}, helpers.AddDays(today, -i)); err != nil {
			t.Fatal(err)
		}
	}

	cutoff := helpers.AddDays(today, -4)
	n, err := repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgeOlderThan() error = %v", err)
	}
	if n != 10 {
		t.Errorf("purged rows = %d, want 10", n)
	}

	for i := 0; i < 10; i++ {
		d := helpers.AddDays(today, -i)
		all, err := repo.GetAll(ctx, d)
		if err != nil {
			t.Fatal(err)
		}
		if d.Before(cutoff) {
			if len(all) != 0 {
				t.Errorf("day -%d before cutoff still has %v", i, all)
			}
			continue
		}
		if len(all) != 2 || all[1] != i || all[2] != i*2 {
			t.Errorf("day -%d = %v, want unchanged", i, all)
		}
	}
}

func TestRetentionSweepOnOpenAndDurability(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "stocks.db")

	repo, db := openStore(t, path, today)
	old := helpers.AddDays(today, -DefaultRetentionDays-1)
	edge := helpers.AddDays(today, -DefaultRetentionDays)
	repo.Save(ctx, map[int64]int{1: 1}, old)
	repo.Save(ctx, map[int64]int{1: 2}, edge)
	repo.Save(ctx, map[int64]int{1: 3}, today)
	db.Close()

	repo, db = openStore(t, path, today)
	defer db.Close()

	if _, ok, _ := repo.Get(ctx, 1, old); ok {
		t.Errorf("row older than retention survived reopen")
	}
	if got, ok, _ := repo.Get(ctx, 1, edge); !ok || got != 2 {
		t.Errorf("row on the retention edge = %d, %v; want 2, true", got, ok)
	}
	if got, ok, _ := repo.Get(ctx, 1, today); !ok || got != 3 {
		t.Errorf("today's row after reopen = %d, %v; want 3, true", got, ok)
	}
}
