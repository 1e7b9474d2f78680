// Package controller holds the HTTP handlers wiring the auth, quota,
// resolver, upstream and streaming components together per request.
package controller

import (
	"gorm.io/gorm"

	"github.com/nexusgate/nexusgate/model"
	"github.com/nexusgate/nexusgate/relay/auth"
	"github.com/nexusgate/nexusgate/relay/quota"
	"github.com/nexusgate/nexusgate/relay/telemetry"
	"github.com/nexusgate/nexusgate/relay/upstream"
)

// Deps bundles the shared singletons every relay handler needs. One Deps is
// built at startup and closed over by each registered gin.HandlerFunc.
type Deps struct {
	DB         *gorm.DB
	Auth       *auth.Pipeline
	Coil       *quota.Coil
	Upstream   *upstream.Client
	Dispatcher *telemetry.Dispatcher
}

// NewDeps wires up the default production Deps.
func NewDeps(db *gorm.DB, cache *model.AuthCache) *Deps {
	return &Deps{
		DB:         db,
		Auth:       auth.New(db, cache),
		Coil:       quota.New(),
		Upstream:   upstream.New(),
		Dispatcher: telemetry.New(),
	}
}
