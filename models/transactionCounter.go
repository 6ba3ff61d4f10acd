package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TransactionCounter backs the daily per-outlet sequence embedded in
// transaction codes. Rows are keyed "ledger_<YYMMDD>_<outletSuffix>" so the
// sequence resets naturally each day.
type TransactionCounter struct {
	CounterKey string    `gorm:"size:100;primary_key" json:"counter_key"`
	Seq        int       `gorm:"not null;default:0" json:"seq"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func LedgerCounterKey(date time.Time, outletSuffix string) string {
	return fmt.Sprintf("ledger_%s_%s", date.Format("060102"), outletSuffix)
}

func OrderCounterKey(date time.Time, outletSuffix string) string {
	return fmt.Sprintf("order_%s_%s", date.Format("060102"), outletSuffix)
}

// NextTransactionSequence atomically increments and returns the sequence for
// key. This must be a single increment-and-fetch statement: many requests hit
// the same daily counter concurrently and read-then-write would hand out
// duplicate codes. A failed caller after the increment leaves a gap, which is
// fine; codes need uniqueness, not density.
func NextTransactionSequence(tx *gorm.DB, key string) (int, error) {
	res := tx.Exec(
		"INSERT INTO transaction_counters (counter_key, seq, created_at, updated_at) VALUES (?, 1, NOW(), NOW()) "+
			"ON DUPLICATE KEY UPDATE seq = LAST_INSERT_ID(seq + 1), updated_at = NOW()",
		key,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	// MySQL reports 1 affected row for a fresh insert, 2 for the upsert path.
	if res.RowsAffected == 1 {
		return 1, nil
	}
	var seq int
	if err := tx.Raw("SELECT LAST_INSERT_ID()").Scan(&seq).Error; err != nil {
		return 0, err
	}
	return seq, nil
}
