package api

import (
	"github.com/bookmarkhive/hivecache/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Instance *service.InstanceService
	Auth     *service.AuthService
	Session  *service.SessionService
	Bookmark *service.BookmarkService
	Tag      *service.TagService
	Sync     *service.SyncService
}
