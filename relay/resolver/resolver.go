// Package resolver implements model-name to backend resolution.
package resolver

import (
	"gorm.io/gorm"

	"github.com/nexusgate/nexusgate/model"
)

// Resolve returns the Service registered for activeModel, or an
// UNSUPPORTED_MODEL gatewayerr when no replica is registered.
func Resolve(db *gorm.DB, activeModel string) (*model.Service, error) {
	return model.ResolveService(db, activeModel)
}
