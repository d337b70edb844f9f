package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/bookmarkhive/hivecache/internal/api"
	"github.com/bookmarkhive/hivecache/internal/config"
	"github.com/bookmarkhive/hivecache/internal/logger"
	"github.com/bookmarkhive/hivecache/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	apiServer *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := h.Server.Shutdown(ctx)
	h.apiServer.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	instanceService := do.MustInvoke[*service.InstanceService](i)
	authService := do.MustInvoke[*service.AuthService](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	bookmarkService := do.MustInvoke[*service.BookmarkService](i)
	tagService := do.MustInvoke[*service.TagService](i)
	syncService := do.MustInvoke[*service.SyncService](i)

	// Ensure the instance record exists before serving requests.
	instanceConfig, err := instanceService.InitializeInstance(context.Background())
	if err != nil {
		return nil, err
	}
	if instanceConfig.IsSetupRequired() {
		log.Warn("Server instance needs setup - no root user configured",
			"instance_id", instanceConfig.ID,
		)
	} else {
		log.Info("Server instance is configured and ready",
			"instance_id", instanceConfig.ID,
			"root_user_id", instanceConfig.RootUserID,
		)
	}

	services := &api.Services{
		Instance: instanceService,
		Auth:     authService,
		Session:  sessionService,
		Bookmark: bookmarkService,
		Tag:      tagService,
		Sync:     syncService,
	}

	handler := api.NewServer(storeHandle.Store, services, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, apiServer: handler}, nil
}
