package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crypto-tracker/config"
	"crypto-tracker/metrics"
	"crypto-tracker/middleware"
)

// Store is everything the handlers read from and write to the position store.
type Store interface {
	AssetStore
	TradeStore
	Pinger
}

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Store  Store
	Closer Closer
	Quotes QuoteSource
	Auth   config.AuthConfig
	Logger *zap.Logger
}

// NewRouter builds the gin engine with every route registered. Reads are
// public; writes require a bearer token when a JWT secret is configured.
func NewRouter(d Deps) *gin.Engine {
	logger := nopIfNil(d.Logger)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.Instrument())

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	(&HealthHandler{Store: d.Store}).Register(engine)
	(&AuthHandler{Config: d.Auth, Logger: logger}).Register(engine)

	api := engine.Group("/api")
	auth := middleware.JWTAuth(d.Auth.JWTSecret)

	(&AssetHandler{Store: d.Store, Logger: logger}).Register(api, auth)
	(&CloseHandler{Service: d.Closer, Logger: logger}).Register(api, auth)
	(&TradeHandler{Store: d.Store, Logger: logger}).Register(api, auth)
	(&PriceHandler{Quotes: d.Quotes, Logger: logger}).Register(api)
	(&PortfolioHandler{Store: d.Store, Quotes: d.Quotes, Logger: logger}).Register(api)

	return engine
}
