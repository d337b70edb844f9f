// Package di provides dependency injection configuration for the HiveCache server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bookmarkhive/hivecache/internal/auth"
	"github.com/bookmarkhive/hivecache/internal/config"
	"github.com/bookmarkhive/hivecache/internal/di/providers"
	"github.com/bookmarkhive/hivecache/internal/logger"
	"github.com/bookmarkhive/hivecache/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideInstanceService)
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideBookmarkService)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideSyncService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.InstanceService](injector)
	_ = do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.BookmarkService](injector)
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.SyncService](injector)

	// Workers
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
