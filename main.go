package main

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/novodent/novodent-manufacturing-api/config"
	"github.com/novodent/novodent-manufacturing-api/controllers"
	"github.com/novodent/novodent-manufacturing-api/middleware"
	"github.com/novodent/novodent-manufacturing-api/models"
	"github.com/novodent/novodent-manufacturing-api/services"
)

func main() {
	// Basic logging
	log.Println("Starting Novodent Manufacturing API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.ManufacturingOrder{},
		&models.MillingForm{},
		&models.OrderMessage{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Initialize S3-backed photo storage when a bucket is configured
	if cfg.AWSS3Bucket != "" {
		s3Service, err := services.InitS3Service()
		if err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}
		services.InitImageService(s3Service)
		log.Printf("Photo storage ready on bucket %s", cfg.AWSS3Bucket)
	} else {
		log.Println("AWS_S3_BUCKET not set, inspection photo storage disabled")
	}

	// Initialize Gin router
	router := gin.Default()

	// CORS for the practice front-end
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://app.novodent.io"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		// Authenticated routes
		auth := v1.Group("")
		auth.Use(middleware.EnsureValidToken(cfg))
		{
			// User profile
			auth.POST("/users", controllers.CreateUser)
			auth.GET("/users/me", controllers.GetMyProfile)
			auth.PUT("/users/me", controllers.UpdateMyProfile)

			// Manufacturing order lifecycle
			orders := auth.Group("/manufacturing-orders")
			{
				orders.POST("", controllers.CreateManufacturingOrder)
				orders.GET("", controllers.ListManufacturingOrders)
				orders.GET("/counts", controllers.GetManufacturingOrderCounts)
				orders.GET("/:id", controllers.GetManufacturingOrder)

				// Transitions
				orders.POST("/:id/start-printing", controllers.StartPrinting)
				orders.POST("/:id/start-milling", controllers.StartMilling)
				orders.POST("/:id/complete-printing", controllers.CompletePrinting)
				orders.POST("/:id/ship", controllers.ShipOrder)
				orders.POST("/:id/start-inspection", controllers.StartInspection)
				orders.POST("/:id/complete-inspection", controllers.CompleteInspection)

				// Records derived from the lifecycle
				orders.GET("/:id/milling-form", controllers.GetMillingForm)
				orders.GET("/:id/report", controllers.GetFabricationReport)

				// QC evidence
				orders.POST("/:id/inspection-photo", controllers.UploadInspectionPhoto)
				orders.GET("/:id/inspection-photo", controllers.GetInspectionPhoto)

				// Conversation thread
				orders.POST("/:id/messages", controllers.SendMessage)
				orders.GET("/:id/messages", controllers.ListMessages)
			}
		}
	}

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Novodent Manufacturing API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
