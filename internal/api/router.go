package api

import (
	"log/slog"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/space-reservation-backend/internal/auth"
	"github.com/nekogravitycat/space-reservation-backend/internal/comment"
	commentHttp "github.com/nekogravitycat/space-reservation-backend/internal/comment/http"
	"github.com/nekogravitycat/space-reservation-backend/internal/config"
	"github.com/nekogravitycat/space-reservation-backend/internal/logging"
	"github.com/nekogravitycat/space-reservation-backend/internal/notification"
	notificationHttp "github.com/nekogravitycat/space-reservation-backend/internal/notification/http"
	"github.com/nekogravitycat/space-reservation-backend/internal/reservation"
	reservationHttp "github.com/nekogravitycat/space-reservation-backend/internal/reservation/http"
	"github.com/nekogravitycat/space-reservation-backend/internal/space"
	spaceHttp "github.com/nekogravitycat/space-reservation-backend/internal/space/http"
)

// Dependencies holds everything the router needs to build handlers.
type Dependencies struct {
	Config              *config.Config
	Logger              *slog.Logger
	Redis               *redis.Client
	JWTManager          *auth.JWTManager
	SpaceService        space.Service
	ReservationService  reservation.Service
	NotificationService notification.Service
	CommentService      comment.Service
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, logging, rate limiting, auth) and registering routes for each module.
func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information to the console.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(RequestLogger(deps.Logger))

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins(deps.Config)
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(deps.JWTManager)
	// staffMiddleware: Further checks that the authenticated user is staff or admin.
	staffMiddleware := auth.RequireStaff()

	v1 := r.Group("/v1")
	v1.Use(RateLimit(deps.Config.RateLimit, deps.Redis, deps.Logger))
	{
		spaceHttp.RegisterRoutes(v1, spaceHttp.NewHandler(deps.SpaceService), authMiddleware, staffMiddleware)
		reservationHttp.RegisterRoutes(v1, reservationHttp.NewHandler(deps.ReservationService), authMiddleware)
		notificationHttp.RegisterRoutes(v1, notificationHttp.NewHandler(deps.NotificationService), authMiddleware)
		commentHttp.RegisterRoutes(v1, commentHttp.NewHandler(deps.CommentService), authMiddleware, staffMiddleware)
	}

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		var origins []string
		for _, o := range strings.Split(cfg.ProdOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return origins
	}
	return []string{
		"http://localhost:3000",
		"http://localhost:8081", // Swagger
	}
}

// RequestLogger tags each request with an id and stores a request-scoped logger in
// the request context for services to pick up.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)

		logger := base.With("request_id", id, "method", c.Request.Method, "path", c.FullPath())
		c.Request = c.Request.WithContext(logging.ContextWithLogger(c.Request.Context(), logger))
		c.Next()
	}
}
