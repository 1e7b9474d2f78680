package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// UserKey is a local-mode authorized caller key.
type UserKey struct {
	UserKey string `gorm:"primaryKey;size:256"`
}

func (UserKey) TableName() string { return "user_keys" }

// UserKeyModel is a local-mode authorized (user_key, active_model) pair.
type UserKeyModel struct {
	UserKey     string `gorm:"primaryKey;size:256"`
	ActiveModel string `gorm:"primaryKey;size:256"`
}

func (UserKeyModel) TableName() string { return "user_key_models" }

// IsKeyKnown reports whether userKey is a recognized local credential.
func IsKeyKnown(db *gorm.DB, userKey string) (bool, error) {
	var count int64
	if err := db.Model(&UserKey{}).Where("user_key = ?", userKey).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "query user key")
	}
	return count > 0, nil
}

// IsKeyModelPairKnown reports whether (userKey, activeModel) is authorized.
func IsKeyModelPairKnown(db *gorm.DB, userKey, activeModel string) (bool, error) {
	var count int64
	if err := db.Model(&UserKeyModel{}).
		Where("user_key = ? AND active_model = ?", userKey, activeModel).
		Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "query user key model pair")
	}
	return count > 0, nil
}
