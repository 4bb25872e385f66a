package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/receiptvault/server/internal/api"
	"github.com/receiptvault/server/internal/config"
	"github.com/receiptvault/server/internal/export"
	"github.com/receiptvault/server/internal/repository"
	"github.com/receiptvault/server/internal/service"
	"github.com/receiptvault/server/internal/storage"
	"github.com/receiptvault/server/internal/utils"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	logger, err := utils.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to set up database", zap.Error(err))
	}
	defer db.Close()

	// Set up the uploads tree; staging holds album uploads between the
	// multipart save and their move into an album directory
	store := storage.NewStore(cfg.Storage.UploadsDir)
	stagingDir := filepath.Join(cfg.Storage.UploadsDir, ".staging")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		logger.Fatal("Failed to create staging directory", zap.Error(err))
	}

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Spreadsheet converter for exports
	converter := export.NewExecConverter(cfg.Export.ConverterCmd, logger)

	// Create service
	svc := service.NewDefaultService(repo, store, converter, cfg.Export.DefaultTemplate, logger, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc, logger, stagingDir)

	// Set up Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	}))

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting server", zap.String("addr", serverAddr))
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
