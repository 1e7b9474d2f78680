package model

import (
	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"

	"github.com/nexusgate/nexusgate/common/random"
	"github.com/nexusgate/nexusgate/gatewayerr"
)

// ServiceStatusActive is the only status the resolver considers eligible.
const ServiceStatusActive = "active"

// Service is a registered upstream inference backend. Several rows may
// share ActiveModel, forming a replica set.
type Service struct {
	ID                uint   `gorm:"primaryKey"`
	ServiceType       string `gorm:"size:64"`
	Status            string `gorm:"size:32;index"`
	URL               string `gorm:"size:1024"`
	UpstreamModelName string `gorm:"size:256"`
	ActiveModel       string `gorm:"size:256;index"`
}

func (Service) TableName() string { return "services" }

// ResolveService returns the Service registered for activeModel, choosing
// uniformly at random among active replicas when more than one matches.
func ResolveService(db *gorm.DB, activeModel string) (*Service, error) {
	var candidates []Service
	if err := db.Where("active_model = ? AND status = ?", activeModel, ServiceStatusActive).
		Find(&candidates).Error; err != nil {
		return nil, errors.Wrap(err, "query services")
	}

	switch len(candidates) {
	case 0:
		return nil, gatewayerr.New(gatewayerr.UnsupportedModel, "no service registered for model "+activeModel)
	case 1:
		return &candidates[0], nil
	default:
		return &candidates[random.RandRange(0, len(candidates))], nil
	}
}
