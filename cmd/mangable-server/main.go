package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mangable/mangable/pkg/mangable/apikeys"
	"github.com/mangable/mangable/pkg/mangable/auth"
	"github.com/mangable/mangable/pkg/mangable/comics"
	"github.com/mangable/mangable/pkg/mangable/database"
	"github.com/mangable/mangable/pkg/mangable/models"
)

// @title Mangable API
// @version 1.0
// @description A metadata-focused comic book library API. Stores ComicInfo
// @description bibliographic metadata only - never binary content.

// @host localhost:8080
// @BasePath /v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token. Format: "Bearer {token}"

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name X-API-Key
// @description API key. Format: "mng_{secret}"

func main() {
	dbPath := os.Getenv("MANGABLE_DB_PATH")
	if dbPath == "" {
		dbPath = "mangable.db"
	}

	if err := database.Connect(dbPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	secret := os.Getenv("MANGABLE_JWT_SECRET")
	if secret == "" {
		// Default for development only - should be set in production
		secret = "mangable-dev-secret-change-in-production"
		log.Println("MANGABLE_JWT_SECRET not set, using development default")
	}

	ttl := auth.DefaultTokenTTL
	if hours := os.Getenv("MANGABLE_TOKEN_TTL_HOURS"); hours != "" {
		n, err := strconv.Atoi(hours)
		if err != nil || n <= 0 {
			log.Fatalf("Invalid MANGABLE_TOKEN_TTL_HOURS: %q", hours)
		}
		ttl = time.Duration(n) * time.Hour
	}
	issuer := auth.NewTokenIssuer([]byte(secret), ttl)

	if err := ensureAdminExists(); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"name":    "Mangable",
			"version": "1.0.0",
			"status":  "ok",
		})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "healthy",
		})
	})

	v1 := r.Group("/v1")
	{
		// Credential resolver (accepts session token or API key)
		requireAuth := apikeys.RequireAuth(database.GetDB(), issuer)

		// Auth routes (public, plus /me behind the resolver)
		authHandler := auth.NewHandler(database.GetDB(), issuer)
		authHandler.RegisterRoutes(v1.Group("/auth"))
		authHandler.RegisterProtectedRoutes(v1.Group("/auth", requireAuth))

		// API key management routes
		apiKeysHandler := apikeys.NewHandler(database.GetDB())
		apiKeysHandler.RegisterRoutes(v1.Group("", requireAuth))

		// Comic metadata routes
		comicsHandler := comics.NewHandler(database.GetDB())
		comicsHandler.RegisterRoutes(v1.Group("", requireAuth))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting Mangable server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureAdminExists creates a default admin user if no admin exists in
// the database.
func ensureAdminExists() error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("is_admin = ?", true).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Username:     "admin",
		Email:        "admin@mangable.local",
		PasswordHash: hashedPassword,
		IsActive:     true,
		IsAdmin:      true,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: admin (password: changeme)")
	return nil
}
