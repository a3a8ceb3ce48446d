package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/rmrk-team/rmrk-substrate-sub000/api/rest"
	"github.com/rmrk-team/rmrk-substrate-sub000/api/sse"
	"github.com/rmrk-team/rmrk-substrate-sub000/audit"
	"github.com/rmrk-team/rmrk-substrate-sub000/cache"
	"github.com/rmrk-team/rmrk-substrate-sub000/config"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/base"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/collection"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/market"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/nft"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/property"
	"github.com/rmrk-team/rmrk-substrate-sub000/core/resource"
	dbadapter "github.com/rmrk-team/rmrk-substrate-sub000/db"
	"github.com/rmrk-team/rmrk-substrate-sub000/event"
	"github.com/rmrk-team/rmrk-substrate-sub000/ledger"
	mw "github.com/rmrk-team/rmrk-substrate-sub000/middleware"
	"github.com/rmrk-team/rmrk-substrate-sub000/model"
	"github.com/rmrk-team/rmrk-substrate-sub000/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	if err := ledger.InitChain(db); err != nil {
		log.Fatalf("chain init: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Engine ----
	led := ledger.New(logger)
	rec := event.NewRecorder(pubsub, logger)
	params := cfg.Chain

	resourceSvc := resource.NewService(db, led, rec, params, logger)
	nftSvc := nft.NewService(db, led, resourceSvc, rec, params, logger)
	collectionSvc := collection.NewService(db, led, rec, params, logger)
	propertySvc := property.NewService(db, led, rec, params, logger)
	baseSvc := base.NewService(db, led, rec, params, logger)
	marketSvc := market.NewService(db, led, nftSvc, rec, params, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// Block production and expiry sweeping. With block_time_ms at 0 the
	// clock only moves through the admin API.
	if params.BlockTimeMs > 0 {
		interval := time.Duration(params.BlockTimeMs) * time.Millisecond
		sched.AddTicker("block_clock", interval, func() {
			height, err := led.AdvanceBlock(db, 1)
			if err != nil {
				logger.Error("block advance failed", zap.Error(err))
				return
			}
			logger.Debug("block produced", zap.Uint64("height", height))
			if err := marketSvc.SweepExpired(context.Background()); err != nil {
				logger.Error("expiry sweep failed", zap.Error(err))
			}
		})
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	collectionH := apirest.NewCollectionHandler(db, collectionSvc)
	nftH := apirest.NewNftHandler(db, nftSvc)
	propertyH := apirest.NewPropertyHandler(db, propertySvc)
	resourceH := apirest.NewResourceHandler(db, resourceSvc)
	baseH := apirest.NewBaseHandler(db, baseSvc)
	marketH := apirest.NewMarketHandler(db, marketSvc)
	adminH := apirest.NewAdminHandler(db, led, marketSvc, sched, auditSvc, logger)

	authed := mw.Auth(cfg.Security, c)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", authed, authH.Logout)
		authG.POST("/refresh", authed, authH.Refresh)
		authG.GET("/me", authed, authH.Me)

		colG := api.Group("/collections")
		colG.GET("", collectionH.List)
		colG.GET("/:cid", collectionH.Get)
		colG.Use(authed)
		colG.POST("", collectionH.Create)
		colG.POST("/:cid/lock", collectionH.Lock)
		colG.DELETE("/:cid", collectionH.Destroy)
		colG.POST("/:cid/issuer", collectionH.ChangeIssuer)

		colPropG := api.Group("/collections/:cid/properties")
		colPropG.GET("", propertyH.List)
		colPropG.Use(authed)
		colPropG.PUT("", propertyH.Set)
		colPropG.DELETE("/:key", propertyH.Remove)
		colPropG.DELETE("", propertyH.RemoveAll)

		nftG := api.Group("/nfts")
		nftG.GET("/:cid/:nid", nftH.Get)
		nftG.GET("/:cid/:nid/children", nftH.Children)
		nftG.GET("/:cid/:nid/resources", resourceH.List)
		nftG.GET("/:cid/:nid/priorities", resourceH.Priorities)
		nftG.GET("/:cid/:nid/properties", propertyH.List)
		nftG.Use(authed)
		nftG.POST("", nftH.Mint)
		nftG.POST("/:cid/:nid/send", nftH.Send)
		nftG.POST("/:cid/:nid/accept", nftH.Accept)
		nftG.POST("/:cid/:nid/reject", nftH.Reject)
		nftG.DELETE("/:cid/:nid", nftH.Burn)
		nftG.PUT("/:cid/:nid/properties", propertyH.Set)
		nftG.DELETE("/:cid/:nid/properties/:key", propertyH.Remove)
		nftG.DELETE("/:cid/:nid/properties", propertyH.RemoveAll)
		nftG.POST("/:cid/:nid/resources", resourceH.Add)
		nftG.POST("/:cid/:nid/resources/:rid/accept", resourceH.Accept)
		nftG.PUT("/:cid/:nid/resources/:rid", resourceH.Replace)
		nftG.DELETE("/:cid/:nid/resources/:rid", resourceH.Remove)
		nftG.POST("/:cid/:nid/resources/:rid/accept-removal", resourceH.AcceptRemoval)
		nftG.PUT("/:cid/:nid/priorities", resourceH.SetPriority)

		baseG := api.Group("/bases")
		baseG.GET("/:id/parts", baseH.Parts)
		baseG.GET("/:id/themes", baseH.Themes)
		baseG.Use(authed)
		baseG.POST("", baseH.Create)
		baseG.POST("/:id/issuer", baseH.ChangeIssuer)
		baseG.PUT("/:id/slots/:slot/equippable", baseH.SetEquippable)
		baseG.POST("/:id/slots/:slot/equippable/:collection", baseH.AddEquippable)
		baseG.DELETE("/:id/slots/:slot/equippable/:collection", baseH.RemoveEquippable)
		baseG.POST("/:id/themes", baseH.AddTheme)

		api.POST("/equip", authed, baseH.Equip)

		api.GET("/listings", marketH.Listings)

		mktG := api.Group("/market")
		mktG.GET("/:cid/:nid/offers", marketH.Offers)
		mktG.Use(authed)
		mktG.POST("/:cid/:nid/list", marketH.List)
		mktG.POST("/:cid/:nid/unlist", marketH.Unlist)
		mktG.POST("/:cid/:nid/buy", marketH.Buy)
		mktG.POST("/:cid/:nid/offers", marketH.MakeOffer)
		mktG.DELETE("/:cid/:nid/offers/:maker", marketH.WithdrawOffer)
		mktG.POST("/:cid/:nid/offers/:maker/accept", marketH.AcceptOffer)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs))
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/blocks/advance", adminH.AdvanceBlock)
		adminG.POST("/credit", adminH.Credit)
		adminG.POST("/tokens/:cid/:nid/freeze", adminH.FreezeToken)
		adminG.PUT("/market/owner", adminH.SetMarketOwner)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.GET("/events/:trace", adminH.Events)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
