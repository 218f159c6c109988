package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/isabella232/xero-sso-form/handlers"
	"github.com/isabella232/xero-sso-form/internal/authflow"
	"github.com/isabella232/xero-sso-form/internal/config"
	"github.com/isabella232/xero-sso-form/internal/database"
	"github.com/isabella232/xero-sso-form/internal/idp"
	"github.com/isabella232/xero-sso-form/internal/sessioncookie"
	"github.com/isabella232/xero-sso-form/internal/users"
	"github.com/isabella232/xero-sso-form/pkg/logger"
	"github.com/isabella232/xero-sso-form/pkg/metrics"
	"github.com/isabella232/xero-sso-form/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging first (LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: issuer=%s mongo=%v redis=%v", cfg.Xero.Issuer, cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.LoadHTMLGlob("web/templates/*.html")

	ctx := context.Background()

	// Connect to Redis early: it backs the pending-request store and, when
	// configured, the distributed rate limiter. Absence of Redis is fine for a
	// single-instance deployment; the in-memory fallbacks take over.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		candidate := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := candidate.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		} else {
			redisClient = candidate
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Optional global rate limiter (per-user when a session resolved, else per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Pending authorization requests: Redis-backed when available so callbacks
	// can land on any instance, in-memory otherwise.
	var pending authflow.Store
	if redisClient != nil {
		pending = authflow.NewRedisStore(redisClient, "authflow:")
	} else {
		pending = authflow.NewMemoryStore()
	}

	// Provider discovery is part of startup; without it no sign-in can work.
	idpClient, err := idp.NewClient(ctx, cfg.Xero, pending)
	if err != nil {
		logger.Fatalf("failed to initialize identity provider client: %v", err)
	}

	// MongoDB with retry/backoff to tolerate startup races against the database
	// container. The user store is the heart of the service, so exhausting the
	// retries is fatal.
	const maxAttempts = 5
	backoff := time.Second
	var mongoClient *mongo.Client
	var errConn error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if errConn == nil {
			break
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if errConn != nil {
		logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
	}
	defer func() { _ = mongoClient.Disconnect(ctx) }()

	usersCol := mongoClient.Database(cfg.MongoDB.Database).Collection("users")
	repo := users.NewMongoRepository(usersCol)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("failed to ensure user indexes: %v", err)
	}
	userSvc := users.NewService(repo)

	cookies := sessioncookie.NewSigner(cfg.Session.Secret, cfg.Session.CookieTTL)

	h := handlers.NewSignUpHandler(cfg, idpClient, userSvc, cookies)
	h.Register(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when the critical dependencies answer
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["mongodb"] = mongoClient.Ping(c.Request.Context(), nil) == nil
		if !deps["mongodb"] {
			ready = false
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting sign-up service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
