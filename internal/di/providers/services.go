package providers

import (
	"github.com/samber/do/v2"

	"github.com/bookmarkhive/hivecache/internal/auth"
	"github.com/bookmarkhive/hivecache/internal/config"
	"github.com/bookmarkhive/hivecache/internal/logger"
	"github.com/bookmarkhive/hivecache/internal/service"
)

// ProvideInstanceService provides the instance configuration service.
func ProvideInstanceService(i do.Injector) (*service.InstanceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	cfg := do.MustInvoke[*config.Config](i)

	return service.NewInstanceService(storeHandle.Store, log.Logger, cfg), nil
}

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	instanceService := do.MustInvoke[*service.InstanceService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, sessionService, instanceService, log.Logger), nil
}

// ProvideBookmarkService provides the bookmark service.
func ProvideBookmarkService(i do.Injector) (*service.BookmarkService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookmarkService(storeHandle.Store, log.Logger), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, log.Logger), nil
}

// ProvideSyncService provides the bookmark index sync service.
func ProvideSyncService(i do.Injector) (*service.SyncService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	cfg := do.MustInvoke[*config.Config](i)

	return service.NewSyncService(storeHandle.Store, log.Logger, cfg.Sync), nil
}
