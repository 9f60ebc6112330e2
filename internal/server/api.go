package server

import (
	"context"
	"net/http"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/auth"
	"github.com/aimerfeng/ChallengeHive/internal/cache"
	"github.com/aimerfeng/ChallengeHive/internal/config"
	"github.com/aimerfeng/ChallengeHive/internal/contest"
	"github.com/aimerfeng/ChallengeHive/internal/creator"
	"github.com/aimerfeng/ChallengeHive/internal/logging"
	"github.com/aimerfeng/ChallengeHive/internal/middleware"
	"github.com/aimerfeng/ChallengeHive/internal/monitoring"
	"github.com/aimerfeng/ChallengeHive/internal/payment"
	"github.com/aimerfeng/ChallengeHive/internal/ratelimit"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/aimerfeng/ChallengeHive/internal/submission"
	"github.com/aimerfeng/ChallengeHive/internal/upstream"
	"github.com/aimerfeng/ChallengeHive/internal/user"
	"github.com/gin-gonic/gin"
)

// Dependencies are the handles the API server is built from.
// Limiter, Processor and Redis are optional.
type Dependencies struct {
	Store     store.Store
	Verifier  auth.Verifier
	Limiter   ratelimit.Limiter
	Processor payment.Processor
	Breakers  *upstream.Manager
	Redis     *cache.Redis
}

// APIServer represents the main API server
type APIServer struct {
	config   *config.Config
	router   *gin.Engine
	deps     Dependencies
	users    *user.Service
	creators *creator.Service
	contests *contest.Service
	tasks    *submission.Service
	payments *payment.Service
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, deps Dependencies) *APIServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Breakers == nil {
		deps.Breakers = upstream.NewManager(nil)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(middleware.RequestID())
	router.Use(middleware.CorrelationID())
	router.Use(logging.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())

	srv := &APIServer{
		config:   cfg,
		router:   router,
		deps:     deps,
		users:    user.NewService(deps.Store),
		creators: creator.NewService(deps.Store),
		contests: contest.NewService(deps.Store),
		tasks:    submission.NewService(deps.Store),
		payments: payment.NewService(deps.Store, deps.Processor, cfg.Server.ClientURL, cfg.Stripe.Currency),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	if s.config.Monitoring.Enabled && s.config.Monitoring.MetricsPort == 0 {
		s.router.GET("/metrics", monitoring.GinHandler())
	}

	// Processor callbacks carry their own proof: the session id is looked up
	// server-side and webhooks are signed.
	confirm := []gin.HandlerFunc{}
	if s.deps.Limiter != nil {
		confirm = append(confirm, middleware.RateLimit(s.deps.Limiter, "payment_confirm"))
	}
	s.router.POST("/paymentSuccess", append(confirm, s.handlePaymentSuccess)...)
	s.router.POST("/webhooks/stripe", s.handleStripeWebhook)

	authed := s.router.Group("/")
	authed.Use(middleware.Authenticate(s.deps.Verifier))
	{
		authed.POST("/users", s.handleRegisterUser)
		authed.GET("/users/:email/role", s.handleGetUserRole)
		authed.POST("/creators", s.handleRequestCreator)

		authed.GET("/myContest", s.handleListMyContests)
		authed.GET("/contestForEdit/:id", s.handleGetContestForEdit)
		authed.PATCH("/updateContest/:id", s.handleUpdateContest)
		authed.GET("/allContests", s.handleListApprovedContests)
		authed.GET("/contestDetails/:id", s.handleGetContest)
		authed.PATCH("/taskInfo/:id", s.handleSubmitTask)
		authed.PATCH("/declareWinner/:id", s.handleDeclareWinner)
		authed.GET("/myParticipatedContests", s.handleListParticipated)
		authed.GET("/myWinningContests", s.handleListWon)

		checkout := []gin.HandlerFunc{}
		if s.deps.Limiter != nil {
			checkout = append(checkout, middleware.RateLimit(s.deps.Limiter, "checkout"))
		}
		authed.POST("/create-checkout-session", append(checkout, s.handleCreateCheckout)...)
	}

	// Creator routes (requires creator role)
	creators := authed.Group("/")
	creators.Use(middleware.RequireCreator(s.deps.Store))
	{
		creators.POST("/contest", s.handleCreateContest)
		creators.DELETE("/contestDelete/:id", s.handleDeleteOwnContest)
	}

	// Admin routes (requires admin role)
	admin := authed.Group("/")
	admin.Use(middleware.RequireAdmin(s.deps.Store))
	{
		admin.GET("/manageContest", s.handleListAllContests)
		admin.PATCH("/updateContestStatus", s.handleUpdateContestStatus)
		admin.DELETE("/deleteContestByAdmin/:id", s.handleDeleteContestAsAdmin)
		admin.GET("/creators", s.handleListCreatorRequests)
		admin.PATCH("/updateCreators", s.handleDecideCreatorRequest)
		admin.PATCH("/userRoleUpdate", s.handleUpdateUserRole)
		admin.GET("/manageUsers", s.handleListUsers)
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"store": "ok"}
	if err := s.deps.Store.Ping(ctx); err != nil {
		logger := logging.NewLogger("health")
		logger.Warn().Err(err).Msg("Store ping failed")
		status = http.StatusServiceUnavailable
		checks["store"] = err.Error()
	}
	if s.deps.Redis != nil {
		checks["redis"] = "ok"
		if err := s.deps.Redis.Health(ctx); err != nil {
			// The limiter fails open, so redis is reported but not fatal.
			checks["redis"] = err.Error()
		}
	}

	health := "healthy"
	if status != http.StatusOK {
		health = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    health,
		"service":   "api",
		"checks":    checks,
		"upstreams": s.deps.Breakers.AllStatus(),
	})
}

// respondData sends the success envelope
func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"data":       data,
		"request_id": middleware.GetRequestIDFromContext(c),
	})
}
