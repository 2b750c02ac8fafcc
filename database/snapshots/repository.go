// Package snapshots persists one stock count per (article, calendar day).
//
// Rows are written once per day by the aggregation run and read back by
// later runs to rebuild stock history that the provider no longer reports.
// Rows older than the retention window are purged when the repository is
// opened, never on write.
package snapshots

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wb-seller-stats/database"
	"wb-seller-stats/helpers"
)

// DefaultRetentionDays is how many days of snapshots survive the sweep on open
const DefaultRetentionDays = 20

const saveBatchSize = 500

// DailyStock is one stored snapshot
type DailyStock struct {
	Article    int64          `gorm:"primaryKey;autoIncrement:false"`
	Day        datatypes.Date `gorm:"primaryKey"`
	StockCount int            `gorm:"not null"`
}

// TableName pins the table name so existing stores stay readable
func (DailyStock) TableName() string {
	return "daily_stocks"
}

type stockRow struct {
	Article    int64
	StockCount int
}

// Repository handles database operations for daily stock snapshots
type Repository struct {
	db *gorm.DB
}

// NewRepository migrates the table and purges rows older than
// retentionDays before today. retentionDays <= 0 uses DefaultRetentionDays.
func NewRepository(ctx context.Context, db *gorm.DB, retentionDays int, today time.Time) (*Repository, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if err := db.WithContext(ctx).AutoMigrate(&DailyStock{}); err != nil {
		return nil, database.WrapDBError("snapshots.migrate", err)
	}

	r := &Repository{db: db}
	if _, err := r.PurgeOlderThan(ctx, helpers.AddDays(today, -retentionDays)); err != nil {
		return nil, err
	}
	return r, nil
}

// Save upserts the stock count of every article for day in one transaction
func (r *Repository) Save(ctx context.Context, counts map[int64]int, day time.Time) error {
	if len(counts) == 0 {
		return nil
	}

	d := datatypes.Date(helpers.Day(day))
	rows := make([]DailyStock, 0, len(counts))
	for article, count := range counts {
		if article <= 0 {
			return database.NewValidationErrorWithValue("article", "must be positive", article)
		}
		rows = append(rows, DailyStock{Article: article, Day: d, StockCount: count})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "article"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{"stock_count"}),
		}).CreateInBatches(rows, saveBatchSize).Error
	})
	return database.WrapDBError("snapshots.save", err)
}

// Get returns the stock count of article on day and whether a row exists
func (r *Repository) Get(ctx context.Context, article int64, day time.Time) (int, bool, error) {
	var rows []stockRow
	err := r.db.WithContext(ctx).
		Model(&DailyStock{}).
		Select("article, stock_count").
		Where("article = ? AND day = ?", article, datatypes.Date(helpers.Day(day))).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return 0, false, database.WrapDBError("snapshots.get", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].StockCount, true, nil
}

// GetAll returns every article's stock count stored for day
func (r *Repository) GetAll(ctx context.Context, day time.Time) (map[int64]int, error) {
	var rows []stockRow
	err := r.db.WithContext(ctx).
		Model(&DailyStock{}).
		Select("article, stock_count").
		Where("day = ?", datatypes.Date(helpers.Day(day))).
		Scan(&rows).Error
	if err != nil {
		return nil, database.WrapDBError("snapshots.get_all", err)
	}

	out := make(map[int64]int, len(rows))
	for _, row := range rows {
		out[row.Article] = row.StockCount
	}
	return out, nil
}

// PurgeOlderThan deletes every row strictly before cutoff and returns how many went
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("day < ?", datatypes.Date(helpers.Day(cutoff))).
		Delete(&DailyStock{})
	if res.Error != nil {
		return 0, database.WrapDBError("snapshots.purge", res.Error)
	}
	return res.RowsAffected, nil
}
