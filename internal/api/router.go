package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/app"
	iauth "github.com/taskwell/taskwell/internal/auth"
	"github.com/taskwell/taskwell/internal/handlers"
	"github.com/taskwell/taskwell/internal/middleware"
	"github.com/taskwell/taskwell/internal/permissions"
	"github.com/taskwell/taskwell/internal/services"
	"github.com/taskwell/taskwell/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, signer *iauth.TransferSigner, mailer mail.Mailer, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if signer == nil {
		return nil, fmt.Errorf("transfer signer must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	quota, err := services.NewQuotaChecker(db)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	projects, err := services.NewProjectService(db, quota, audit)
	if err != nil {
		return nil, err
	}
	memberships, err := services.NewMembershipService(db, audit)
	if err != nil {
		return nil, err
	}
	transfers, err := services.NewTransferService(db, signer, quota, mailer, audit)
	if err != nil {
		return nil, err
	}
	attributes, err := services.NewAttributeService(db)
	if err != nil {
		return nil, err
	}
	stats, err := services.NewStatsService(db)
	if err != nil {
		return nil, err
	}
	checker, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(users, jwt)
	projectHandler := handlers.NewProjectHandler(projects, memberships, transfers, stats, checker)
	membershipHandler := handlers.NewMembershipHandler(memberships)
	attributeHandler := handlers.NewAttributeHandler(attributes)

	registerAuthRoutes(r, authHandler, jwt)
	registerPublicProjectRoutes(r, projectHandler, jwt)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	registerProjectRoutes(api, projectHandler, membershipHandler, attributeHandler)
	registerMembershipRoutes(api, membershipHandler)
	registerAttributeRoutes(api, attributeHandler)

	return r, nil
}
