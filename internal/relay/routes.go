package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authH "github.com/ledgersync/ledgersync/internal/relay/handlers/auth"
	devicesH "github.com/ledgersync/ledgersync/internal/relay/handlers/devices"
	pairingH "github.com/ledgersync/ledgersync/internal/relay/handlers/pairing"
	syncH "github.com/ledgersync/ledgersync/internal/relay/handlers/sync"
	"github.com/ledgersync/ledgersync/internal/relay/handlers/ws"
	"github.com/ledgersync/ledgersync/internal/relay/middlewares"
	"github.com/ledgersync/ledgersync/internal/version"
)

func SetupRoutes(config *Config, svc *Services, hub *ws.WebsocketHub) http.Handler {
	r := gin.New()

	authHandler := authH.New(svc.Auth)
	pairingHandler := pairingH.New(svc.Pairing, svc.Email)
	syncHandler := syncH.New(svc.Events, svc.Snapshots, hub, config.Snapshot.MaxSizeBytes)
	devicesHandler := devicesH.New(svc.Events)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	r.Use(middlewares.SecureHeaders(config.HTTP.TLS()))

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")

	a := v1.Group("/auth")
	{
		a.POST("/otp/request", middlewares.RateLimiter(config.HTTP.OTPRate), authHandler.OTPRequest)
		a.POST("/otp/verify", middlewares.RateLimiter(config.HTTP.OTPRate), authHandler.OTPVerify)
		a.POST("/refresh", authHandler.Refresh)
	}

	authed := v1.Group("")
	authed.Use(middlewares.JWTAuth(svc.Auth))
	{
		authed.POST("/devices", devicesHandler.Register)
		authed.GET("/devices", devicesHandler.List)
	}

	// everything below requires a registered, active device
	device := authed.Group("")
	device.Use(middlewares.RequireDevice(svc.Events))
	{
		device.PATCH("/devices/:id", devicesHandler.Rename)
		device.POST("/devices/:id/revoke", devicesHandler.Revoke)

		device.POST("/pairing/session", pairingHandler.Create)
		device.POST("/pairing/resolve", middlewares.RateLimiter(config.Pairing.ClaimRate), pairingHandler.Resolve)
		device.POST("/pairing/:id/claim", middlewares.RateLimiter(config.Pairing.ClaimRate), pairingHandler.Claim)
		device.GET("/pairing/:id/status", pairingHandler.Status)
		device.POST("/pairing/:id/complete", pairingHandler.Complete)
		device.GET("/pairing/:id/bundle", pairingHandler.Bundle)
		device.POST("/pairing/:id/cancel", pairingHandler.Cancel)

		device.POST("/sync/push", syncHandler.Push)
		device.GET("/sync/pull", syncHandler.Pull)
		device.GET("/sync/cursor", syncHandler.Cursor)
		device.POST("/sync/snapshot", syncHandler.UploadSnapshot)
		device.GET("/sync/snapshot/latest", syncHandler.LatestSnapshot)
		device.GET("/sync/snapshot/:id", syncHandler.DownloadSnapshot)

		device.GET("/events", hub.WebsocketHandler)
	}

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, "ledgersync relay %s", version.Detailed())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}
