package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcelprats/TFM/internal/models"
)

const counterRowID = 1

var orderNumberRe = regexp.MustCompile(`^ORD-(\d{10})`)

// FormatOrderNumber renders the zero-padded human-readable base number.
func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("ORD-%010d", n)
}

// nextBaseNumber allocates the next sequential base number under a row
// lock on the counter table. A checkout consumes exactly one base
// number regardless of how many per-shop orders it splits into.
func nextBaseNumber(tx *gorm.DB) (int64, error) {
	locked := tx
	if tx.Dialector.Name() != "sqlite" {
		locked = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var ctr models.OrderCounter
	err := locked.First(&ctr, counterRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seed, seedErr := latestIssuedNumber(tx)
		if seedErr != nil {
			return 0, seedErr
		}
		ctr = models.OrderCounter{ID: counterRowID, LastNumber: seed}
		if err := tx.Create(&ctr).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	ctr.LastNumber++
	if err := tx.Model(&models.OrderCounter{}).Where("id = ?", counterRowID).
		Update("last_number", ctr.LastNumber).Error; err != nil {
		return 0, err
	}
	return ctr.LastNumber, nil
}

// latestIssuedNumber seeds the counter from pre-counter data by parsing
// the most recent order's number. Runs once, when the counter row does
// not exist yet.
func latestIssuedNumber(tx *gorm.DB) (int64, error) {
	var last models.Order
	err := tx.Order("id DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	m := orderNumberRe.FindStringSubmatch(last.OrderNumber)
	if m == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
