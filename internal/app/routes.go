package app

import (
	"github.com/ferdiebergado/gdprkit/internal/audit"
	"github.com/ferdiebergado/gdprkit/internal/auth"
	"github.com/ferdiebergado/gdprkit/internal/consent"
	"github.com/ferdiebergado/gdprkit/internal/dsr"
	"github.com/ferdiebergado/gdprkit/internal/erasure"
	"github.com/ferdiebergado/gdprkit/internal/middleware"
	"github.com/ferdiebergado/gdprkit/internal/platform/router"
	"github.com/ferdiebergado/gdprkit/internal/provider"
	"github.com/ferdiebergado/gdprkit/internal/user"
)

// Rate limit scopes.
const (
	scopeAuth     = "auth"
	scopeRequests = "requests"
)

type routes struct {
	r        router.Router
	p        *provider.Provider
	m        *Modules
	tracker  audit.Recorder
	access   string
	bodySize int64
}

func mountRoutes(p *provider.Provider, m *Modules) {
	rt := &routes{
		r:        p.Router,
		p:        p,
		m:        m,
		tracker:  m.Audit.Recorder(),
		access:   auth.AccessAudience(p.Cfg),
		bodySize: p.Cfg.Server.MaxBodyBytes,
	}

	rt.auth()
	rt.account()
	rt.consent()
	rt.requests()
	rt.admin()

	p.Router.Get("/metrics", p.Metrics.Handler().ServeHTTP)
}

func (rt *routes) requireToken() router.Middleware {
	return auth.RequireToken(rt.p.Signer, rt.access)
}

func (rt *routes) track(action, resource string) router.Middleware {
	return middleware.Track(rt.tracker, action, resource)
}

func (rt *routes) auth() {
	handler := rt.m.Auth.Handler()
	cfg := rt.p.Cfg
	signer := rt.p.Signer
	validator := rt.p.Validator
	limit := middleware.RateLimit(rt.p.Limiter, scopeAuth)
	csrf := middleware.CSRFGuard(cfg.CSRF, rt.p.CSRFBaker)

	rt.r.Group("/auth", func(gr router.Router) {
		gr.Post("/register", handler.Register, limit,
			middleware.DecodePayload[auth.RegisterRequest](rt.bodySize),
			middleware.ValidateInput[auth.RegisterRequest](validator))
		gr.Post("/login", handler.Login, limit,
			middleware.DecodePayload[auth.LoginRequest](rt.bodySize),
			middleware.ValidateInput[auth.LoginRequest](validator))
		gr.Get("/verify", handler.VerifyEmail, auth.VerifyToken(signer, cfg.Server.URL+auth.PathVerify))
		gr.Post("/refresh", handler.Refresh, csrf)
		gr.Post("/logout", handler.Logout, csrf)
		gr.Post("/forgot", handler.ForgotPassword, limit,
			middleware.DecodePayload[auth.ForgotPasswordRequest](rt.bodySize),
			middleware.ValidateInput[auth.ForgotPasswordRequest](validator))
		gr.Post("/reset", handler.ResetPassword,
			auth.VerifyToken(signer, cfg.Server.URL+auth.PathReset),
			middleware.DecodePayload[auth.ResetPasswordRequest](rt.bodySize),
			middleware.ValidateInput[auth.ResetPasswordRequest](validator))
	})
}

// account mounts the routes a signed in data subject uses to exercise their
// rights over their own data.
func (rt *routes) account() {
	users := rt.m.User.Handler()
	validator := rt.p.Validator
	token := rt.requireToken()

	rt.r.Get("/me", users.Me, token, rt.track(audit.ActionProfileRead, "user"))
	rt.r.Patch("/me", users.UpdateMe, token,
		rt.track(audit.ActionProfileUpdated, "user"),
		middleware.DecodePayload[user.UpdateProfileRequest](rt.bodySize),
		middleware.ValidateInput[user.UpdateProfileRequest](validator))
	rt.r.Delete("/me", rt.m.Erasure.Handler().DeleteAccount, token,
		middleware.DecodePayload[erasure.DeleteAccountRequest](rt.bodySize),
		middleware.ValidateInput[erasure.DeleteAccountRequest](validator))
	rt.r.Get("/me/export", rt.m.Export.Handler().Export, token,
		rt.track(audit.ActionDataExported, "user"))
	rt.r.Get("/me/activity", rt.m.Audit.Handler().MyActivity, token)
}

func (rt *routes) consent() {
	handler := rt.m.Consent.Handler()
	optional := auth.OptionalToken(rt.p.Signer, rt.access)
	csrf := middleware.CSRFGuard(rt.p.Cfg.CSRF, rt.p.CSRFBaker)
	changed := rt.track(audit.ActionConsentChanged, "consent")

	rt.r.Get("/consent/banner", handler.Banner, optional, csrf)
	rt.r.Get("/consent/history", handler.History, optional, csrf)
	rt.r.Get("/consent", handler.Get, optional, csrf)
	rt.r.Post("/consent", handler.Save, optional, csrf, changed,
		middleware.DecodePayload[consent.SaveRequest](rt.bodySize),
		middleware.ValidateInput[consent.SaveRequest](rt.p.Validator))
	rt.r.Delete("/consent", handler.Withdraw, optional, csrf, changed)
}

func (rt *routes) requests() {
	handler := rt.m.DSR.Handler()

	rt.r.Post("/requests", handler.Submit,
		auth.OptionalToken(rt.p.Signer, rt.access),
		middleware.RateLimit(rt.p.Limiter, scopeRequests),
		middleware.DecodePayload[dsr.SubmitRequest](rt.bodySize),
		middleware.ValidateInput[dsr.SubmitRequest](rt.p.Validator))
	rt.r.Get("/requests/verify", handler.Verify)
	rt.r.Get("/requests/status/{reference}", handler.Status)
}

// admin mounts the operator routes. Every route requires an admin account.
func (rt *routes) admin() {
	dsrHandler := rt.m.DSR.Handler()
	validator := rt.p.Validator
	changed := rt.track(audit.ActionRequestChanged, "data_request")
	role := auth.RequireRole(rt.m.User.Service(), user.RoleAdmin)

	rt.r.Get("/users", rt.m.User.Handler().List, rt.requireToken(), role,
		rt.track(audit.ActionUsersListed, "user"))

	rt.r.Group("/admin", func(gr router.Router) {
		gr.Get("/audit", rt.m.Audit.Handler().List, rt.track(audit.ActionAuditViewed, "audit_log"))
		gr.Get("/compliance", rt.m.Compliance.Handler().Report)

		gr.Get("/requests", dsrHandler.List)
		gr.Get("/requests/{id}", dsrHandler.Get)
		gr.Post("/requests/{id}/start", dsrHandler.Start, changed)
		gr.Post("/requests/{id}/complete", dsrHandler.Complete, changed,
			middleware.DecodePayload[dsr.CompleteRequest](rt.bodySize),
			middleware.ValidateInput[dsr.CompleteRequest](validator))
		gr.Post("/requests/{id}/reject", dsrHandler.Reject, changed,
			middleware.DecodePayload[dsr.RejectRequest](rt.bodySize),
			middleware.ValidateInput[dsr.RejectRequest](validator))
		gr.Post("/requests/{id}/extend", dsrHandler.Extend, changed,
			middleware.DecodePayload[dsr.ExtendRequest](rt.bodySize),
			middleware.ValidateInput[dsr.ExtendRequest](validator))
	}, rt.requireToken(), role)
}
