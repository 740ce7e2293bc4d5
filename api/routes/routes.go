package routes

import (
	"time"

	"radportal/api/handler"
	"radportal/api/middleware"
	"radportal/internal/metrics"
	"radportal/internal/ratelimit"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	Sessions       *handler.SessionHandler
	Portal         *handler.PortalHandler
	Admin          *handler.AdminHandler
	AuthMiddleware middleware.AuthMiddleware
	Roles          middleware.RoleResolver
	AccessLimiter  *ratelimit.Limiter
	MagicLinkRate  *middleware.BurstLimiter
	PollRate       *middleware.BurstLimiter
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	portalHandler *handler.PortalHandler,
	adminHandler *handler.AdminHandler,
	authMiddleware middleware.AuthMiddleware,
	roles middleware.RoleResolver,
	accessLimiter *ratelimit.Limiter,
) *Router {
	return &Router{
		Echo:           e,
		Auth:           authHandler,
		Sessions:       sessionHandler,
		Portal:         portalHandler,
		Admin:          adminHandler,
		AuthMiddleware: authMiddleware,
		Roles:          roles,
		AccessLimiter:  accessLimiter,
		MagicLinkRate:  middleware.NewBurstLimiter(rate.Limit(1), 5, 10*time.Minute),
		PollRate:       middleware.NewBurstLimiter(rate.Limit(2), 10, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	requireAuth := r.AuthMiddleware.RequireAuth
	requireAdmin := middleware.RequireAdmin(r.Roles)

	e.POST("/auth/eligibility", r.Auth.Eligibility, r.MagicLinkRate.Middleware())
	e.POST("/auth/magic-link", r.Auth.RequestMagicLink, r.MagicLinkRate.Middleware())
	e.GET("/auth/magic-link/:token/status", r.Auth.MagicLinkStatus, r.PollRate.Middleware())
	e.POST("/auth/magic-link/verify", r.Auth.VerifyMagicLink, r.MagicLinkRate.Middleware())
	e.POST("/auth/magic-link/complete", r.Auth.CompleteMagicLink, r.MagicLinkRate.Middleware())

	e.GET("/auth/sessions", r.Sessions.ListSessions, requireAuth)
	e.DELETE("/auth/sessions/:id", r.Sessions.RevokeSession, requireAuth)
	e.POST("/auth/sessions/revoke-others", r.Sessions.RevokeOthers, requireAuth)
	e.POST("/auth/logout", r.Sessions.Logout, requireAuth)
	e.GET("/auth/activity", r.Sessions.Activity, requireAuth)
	e.GET("/me", r.Auth.Me, requireAuth)

	e.Any("/check-admin-status", r.Portal.CheckAdminStatus)
	e.Any("/submit-access-request", r.Portal.SubmitAccessRequest, middleware.SlidingWindow(r.AccessLimiter))

	e.GET("/admin/access-requests", r.Admin.ListAccessRequests, requireAuth, requireAdmin)
	e.POST("/admin/access-requests/:id/review", r.Admin.ReviewAccessRequest, requireAuth, requireAdmin)
	e.POST("/admin/invitation-codes", r.Admin.IssueInvitationCode, requireAuth, requireAdmin)

	e.GET("/metrics", metrics.Handler())
}
