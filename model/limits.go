package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// ModelLimits are the coil-enforced per-minute limits for one active_model.
// This gateway only reads them to forward as coil `limit` parameters.
type ModelLimits struct {
	ActiveModel       string `gorm:"primaryKey;size:256"`
	MaxRequestsPerMin int64
	MaxTokensPerMin   int64
}

func (ModelLimits) TableName() string { return "model_limits" }

// LimitsForModel looks up the configured limits for activeModel. A missing
// row is not an error: callers should fall back to "no limit" (limit=0,
// which the coil protocol treats as unbounded).
func LimitsForModel(db *gorm.DB, activeModel string) (*ModelLimits, error) {
	var limits ModelLimits
	err := db.Where("active_model = ?", activeModel).First(&limits).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ModelLimits{ActiveModel: activeModel}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query model limits")
	}
	return &limits, nil
}
