// Package server assembles the HTTP router from the feature handlers.
package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zt-totp/backend/internal/api"
	"zt-totp/backend/internal/audit"
	audithandler "zt-totp/backend/internal/audit/handler"
	"zt-totp/backend/internal/dev"
	devicehandler "zt-totp/backend/internal/device/handler"
	devicekeyhandler "zt-totp/backend/internal/devicekey/handler"
	enrollmenthandler "zt-totp/backend/internal/enrollment/handler"
	loginhandler "zt-totp/backend/internal/login/handler"
	rphandler "zt-totp/backend/internal/relyingparty/handler"
	totphandler "zt-totp/backend/internal/totp/handler"
	userhandler "zt-totp/backend/internal/user/handler"
	verificationhandler "zt-totp/backend/internal/verification/handler"
)

// Deps carries everything the router needs. Debug is nil unless debug
// endpoints were enabled at startup; the gate is evaluated exactly once, at
// wiring time.
type Deps struct {
	DB           *sql.DB
	Users        *userhandler.Handler
	Devices      *devicehandler.Handler
	RPs          *rphandler.Handler
	DeviceKeys   *devicekeyhandler.Handler
	Enrollment   *enrollmenthandler.Handler
	TOTP         *totphandler.Handler
	Verification *verificationhandler.Handler
	Login        *loginhandler.Handler
	Audit        *audithandler.Handler
	Debug        *dev.Handler
}

// clientIP stores the request's client IP on the context so the audit logger
// can record it without seeing the request.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(audit.WithClientIP(r.Context(), r.RemoteAddr)))
	})
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("http %s %s status=%d duration_ms=%d",
			r.Method, r.URL.Path, ww.Status(), time.Since(started).Milliseconds())
	})
}

// NewRouter builds the chi router with all feature routes mounted.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(clientIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			api.Error(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	d.Users.Mount(r)
	d.Devices.Mount(r)
	d.RPs.Mount(r)
	d.DeviceKeys.Mount(r)
	d.Enrollment.Mount(r)
	d.TOTP.Mount(r)
	d.Verification.Mount(r)
	d.Login.Mount(r)
	d.Audit.Mount(r)
	if d.Debug != nil {
		d.Debug.Mount(r)
	}

	return r
}
