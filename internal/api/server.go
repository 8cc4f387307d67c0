// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kleo-network/kleo-backend/internal/models"
	"github.com/kleo-network/kleo-backend/internal/service"
)

// Service interfaces for dependency injection and testing

// UserGatewayInterface defines the user store operations used by handlers
type UserGatewayInterface interface {
	FindByAddress(ctx context.Context, address string) (*models.User, error)
	CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, bool, error)
	GetActivityJSON(ctx context.Context, address string) (map[string]interface{}, error)
}

// RankServiceInterface defines the leaderboard operations
type RankServiceInterface interface {
	TopUsers(ctx context.Context, limit int) ([]models.RankedUser, error)
	RankOf(ctx context.Context, address string) (*models.UserRank, error)
}

// ReferralServiceInterface defines the referral listing operation
type ReferralServiceInterface interface {
	Referrals(ctx context.Context, address string) ([]models.ReferralDetail, error)
}

// PipelineInterface defines the save-history use case
type PipelineInterface interface {
	SaveHistory(ctx context.Context, req *service.SaveHistoryRequest) (*service.SaveHistoryResponse, error)
}

// ChartServiceInterface defines the activity-chart upload operation
type ChartServiceInterface interface {
	UploadActivityChart(ctx context.Context, imageData string) (string, error)
}

// TokenIssuerInterface defines credential issuing for new users
type TokenIssuerInterface interface {
	IssueToken(address, slug string) (string, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	users      UserGatewayInterface
	rank       RankServiceInterface
	referrals  ReferralServiceInterface
	pipeline   PipelineInterface
	charts     ChartServiceInterface
	tokens     TokenIssuerInterface
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host             string
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	LeaderboardLimit int
	FreeTierRPS      int
	PremiumTierRPS   int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	users UserGatewayInterface,
	rank RankServiceInterface,
	referrals ReferralServiceInterface,
	pipeline PipelineInterface,
	charts ChartServiceInterface,
	tokens TokenIssuerInterface,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		users:     users,
		rank:      rank,
		referrals: referrals,
		pipeline:  pipeline,
		charts:    charts,
		tokens:    tokens,
		config:    config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.FreeTierRPS, s.config.PremiumTierRPS)

	// Middleware order matters: logging first, rate limiting after CORS
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1/user").Subrouter()

	api.HandleFunc("/get-user/{address}", s.handleGetUser).Methods("GET")
	api.HandleFunc("/top-users", s.handleTopUsers).Methods("GET")
	api.HandleFunc("/rank/{address}", s.handleGetRank).Methods("GET")
	api.HandleFunc("/referrals/{address}", s.handleGetReferrals).Methods("GET")
	api.HandleFunc("/create-user", s.handleCreateUser).Methods("POST")
	api.HandleFunc("/save-history", s.handleSaveHistory).Methods("POST")
	api.HandleFunc("/upload_activity_chart", s.handleUploadActivityChart).Methods("POST")
	api.HandleFunc("/get-user-graph/{address}", s.handleGetUserGraph).Methods("GET")
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
