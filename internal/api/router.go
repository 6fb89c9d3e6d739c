package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/massage-booking-backend/internal/admin"
	"github.com/nekogravitycat/massage-booking-backend/internal/auth"
	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/massage-booking-backend/internal/booking/http"
)

// Config holds everything the router needs.
type Config struct {
	IsProduction     bool
	ProdOrigins      string
	BookingService   booking.Service
	AdminService     admin.Service
	JWTManager       *auth.JWTManager
	Logger           *zap.Logger
	BookRateInterval time.Duration
	BookRateBurst    int
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth, rate limits) and registering routes.
func NewRouter(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()

	// Global Middleware:
	// - RequestLogger: one structured log line per request.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestLogger(logger), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	config := cors.DefaultConfig()
	if cfg.IsProduction {
		config.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The records list is open unless an admin password is configured.
	var recordsGuards []gin.HandlerFunc
	if cfg.AdminService != nil && cfg.AdminService.Enabled() {
		recordsGuards = append(recordsGuards,
			auth.AuthRequired(cfg.JWTManager),
			auth.RequireRole(auth.AdminSubject),
		)
	}

	writeLimit := RateLimit(cfg.BookRateInterval, cfg.BookRateBurst, logger)

	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)

	apiGroup := r.Group("/api")
	{
		bookingHttp.RegisterRoutes(apiGroup, bookingHandler, writeLimit, recordsGuards...)

		if cfg.AdminService != nil {
			authHandler := NewAuthHandler(cfg.AdminService)
			apiGroup.POST("/admin/login", writeLimit, authHandler.Login)
		}
	}

	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
