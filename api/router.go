// api/router.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-apigen/api/handlers"
	"github.com/Annany2002/nebula-apigen/api/middleware"
	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/auth"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/storage"
)

// SetupRouter initializes the Gin router and mounts the CRUD endpoints of
// every table under /api/v1/{table}/.
func SetupRouter(store *storage.RecordStore, tables []domain.TableDescriptor, cfg *config.Config) (*gin.Engine, error) {
	router := gin.Default() // Includes Logger and Recovery

	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.RateLimitPerMinute > 0 {
		router.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(cfg.RateLimitPerMinute)))
	}
	// Runs after Logger/Recovery and wraps every handler below.
	router.Use(middleware.ErrorHandler())

	// --- Public Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "title": cfg.APITitle, "version": cfg.APIVersion})
	})

	// --- API Routes ---
	apiRoutes := router.Group("/api/v1")
	schemaRoutes := router.Group("/schema")
	if cfg.EnableAuth {
		issuer, err := auth.NewIssuer(cfg)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		apiRoutes.Use(middleware.AuthMiddleware(issuer))
		schemaRoutes.Use(middleware.AuthMiddleware(issuer))
	}

	for _, t := range tables {
		handlers.NewRecordHandler(store, t).Register(apiRoutes)
	}

	tableHandler := handlers.NewTableHandler(tables)
	schemaRoutes.GET("", tableHandler.ListTables)
	schemaRoutes.GET("/:table_name", tableHandler.GetTable)

	return router, nil
}
