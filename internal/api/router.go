package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	mw "github.com/xbrch/xbrch-saas-platform/internal/api/middleware"
	"github.com/xbrch/xbrch-saas-platform/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	LoginHandler          http.HandlerFunc
	ChangePasswordHandler http.HandlerFunc

	CreateBroadcastHandler       http.HandlerFunc
	ListBroadcastsHandler        http.HandlerFunc
	GetBroadcastHandler          http.HandlerFunc
	DeleteBroadcastHandler       http.HandlerFunc
	UpdateBroadcastStatusHandler http.HandlerFunc
	PublishOutputHandler         http.HandlerFunc

	UsageHandler     http.HandlerFunc
	ListAuditHandler http.HandlerFunc

	GetProfileHandler    http.HandlerFunc
	UpdateProfileHandler http.HandlerFunc

	CreateWallUpdateHandler http.HandlerFunc
	ListWallUpdatesHandler  http.HandlerFunc
	GetWallUpdateHandler    http.HandlerFunc
	UpdateWallUpdateHandler http.HandlerFunc
	DeleteWallUpdateHandler http.HandlerFunc
	WallStatsHandler        http.HandlerFunc
	WallEmbedHandler        http.HandlerFunc
	PublicWallHandler       http.HandlerFunc

	CreateAnnouncementHandler http.HandlerFunc
	CreateBlogHandler         http.HandlerFunc
	ListPostsHandler          http.HandlerFunc
	GetPostHandler            http.HandlerFunc
	UpdatePostHandler         http.HandlerFunc
	DeletePostHandler         http.HandlerFunc
	WebsiteStatsHandler       http.HandlerFunc

	TokenReportHandler http.HandlerFunc
	DashboardHandler   http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc

	CreateTenantHandler http.HandlerFunc
	ListTenantsHandler  http.HandlerFunc
	GetTenantHandler    http.HandlerFunc
	UpdateTenantHandler http.HandlerFunc
	DeleteTenantHandler http.HandlerFunc
	TenantStatsHandler  http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Post("/api/v1/auth/login", orNotImplemented(deps.LoginHandler))
	r.Get("/api/v1/wall/public/{slug}", orNotImplemented(deps.PublicWallHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Put("/api/v1/auth/password", orNotImplemented(deps.ChangePasswordHandler))

		r.With(deps.Auth.RequireScope(mw.ScopeBroadcast)).
			Post("/api/v1/broadcasts", orNotImplemented(deps.CreateBroadcastHandler))
		r.Get("/api/v1/broadcasts", orNotImplemented(deps.ListBroadcastsHandler))
		r.Get("/api/v1/broadcasts/{broadcastID}", orNotImplemented(deps.GetBroadcastHandler))
		r.Delete("/api/v1/broadcasts/{broadcastID}", orNotImplemented(deps.DeleteBroadcastHandler))
		r.Patch("/api/v1/broadcasts/{broadcastID}/status", orNotImplemented(deps.UpdateBroadcastStatusHandler))
		r.Post("/api/v1/broadcasts/{broadcastID}/outputs/{outputID}/publish", orNotImplemented(deps.PublishOutputHandler))

		r.Get("/api/v1/usage", orNotImplemented(deps.UsageHandler))
		r.Get("/api/v1/audit", orNotImplemented(deps.ListAuditHandler))

		r.Get("/api/v1/profile", orNotImplemented(deps.GetProfileHandler))
		r.Put("/api/v1/profile", orNotImplemented(deps.UpdateProfileHandler))

		r.Post("/api/v1/wall/updates", orNotImplemented(deps.CreateWallUpdateHandler))
		r.Get("/api/v1/wall/updates", orNotImplemented(deps.ListWallUpdatesHandler))
		r.Get("/api/v1/wall/updates/{updateID}", orNotImplemented(deps.GetWallUpdateHandler))
		r.Put("/api/v1/wall/updates/{updateID}", orNotImplemented(deps.UpdateWallUpdateHandler))
		r.Delete("/api/v1/wall/updates/{updateID}", orNotImplemented(deps.DeleteWallUpdateHandler))
		r.Get("/api/v1/wall/stats", orNotImplemented(deps.WallStatsHandler))
		r.Get("/api/v1/wall/embed-code", orNotImplemented(deps.WallEmbedHandler))

		r.With(deps.Auth.RequireScope(mw.ScopeBroadcast)).
			Post("/api/v1/website/announcement", orNotImplemented(deps.CreateAnnouncementHandler))
		r.With(deps.Auth.RequireScope(mw.ScopeBroadcast)).
			Post("/api/v1/website/blog", orNotImplemented(deps.CreateBlogHandler))
		r.Get("/api/v1/website/posts", orNotImplemented(deps.ListPostsHandler))
		r.Get("/api/v1/website/posts/{postID}", orNotImplemented(deps.GetPostHandler))
		r.Put("/api/v1/website/posts/{postID}", orNotImplemented(deps.UpdatePostHandler))
		r.Delete("/api/v1/website/posts/{postID}", orNotImplemented(deps.DeletePostHandler))
		r.Get("/api/v1/website/stats", orNotImplemented(deps.WebsiteStatsHandler))

		r.Get("/api/v1/analytics/tokens", orNotImplemented(deps.TokenReportHandler))
		r.Get("/api/v1/analytics/dashboard", orNotImplemented(deps.DashboardHandler))

		r.Post("/api/v1/keys", orNotImplemented(deps.CreateKeyHandler))
		r.Get("/api/v1/keys", orNotImplemented(deps.ListKeysHandler))
		r.Delete("/api/v1/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeAdmin))

			r.Post("/api/v1/admin/tenants", orNotImplemented(deps.CreateTenantHandler))
			r.Get("/api/v1/admin/tenants", orNotImplemented(deps.ListTenantsHandler))
			r.Get("/api/v1/admin/tenants/{tenantID}", orNotImplemented(deps.GetTenantHandler))
			r.Put("/api/v1/admin/tenants/{tenantID}", orNotImplemented(deps.UpdateTenantHandler))
			r.Delete("/api/v1/admin/tenants/{tenantID}", orNotImplemented(deps.DeleteTenantHandler))
			r.Get("/api/v1/admin/stats", orNotImplemented(deps.TenantStatsHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
