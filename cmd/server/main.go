package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/space-queue-system/internal/auth"
	"github.com/space-queue-system/internal/engine"
	"github.com/space-queue-system/internal/payments"
	"github.com/space-queue-system/internal/resolver"
	"github.com/space-queue-system/internal/space"
	"github.com/space-queue-system/internal/ws"
	"github.com/space-queue-system/pkg/database"
	"github.com/space-queue-system/pkg/events"
	"github.com/space-queue-system/pkg/redis"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	// Set Gin mode based on environment
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize MySQL database
	db, err := database.NewMySQLDB(
		os.Getenv("MYSQL_HOST"),
		os.Getenv("MYSQL_PORT"),
		os.Getenv("MYSQL_USER"),
		os.Getenv("MYSQL_PASSWORD"),
		os.Getenv("MYSQL_DATABASE"),
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize Redis client
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     os.Getenv("REDIS_HOST") + ":" + os.Getenv("REDIS_PORT"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	// Initialize Kafka audit stream
	kafkaClient := events.NewKafkaClient(
		strings.Split(os.Getenv("KAFKA_BROKERS"), ","),
		"space-queue-events",
		os.Getenv("KAFKA_GROUP_ID"),
	)

	// Initialize the queue sync engine and its collaborators
	hub := ws.NewHub()
	publisher := events.NewAuditPublisher(hub, kafkaClient)
	trackResolver := resolver.NewClient()
	paymentOracle := payments.NewOracle(os.Getenv("SOLANA_RPC_URL"))
	eng := engine.New(trackResolver, paymentOracle, db, publisher)

	sessionStore := redis.NewSessionStore(redisClient)
	spaceService := space.NewService(db, redisClient, eng)

	// Initialize handlers
	authHandler := auth.NewHandler(db, sessionStore)
	spaceHandler := space.NewHandler(spaceService)
	wsHandler := ws.NewHandler(hub, eng)

	// Initialize Gin router
	router := gin.Default()

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(os.Getenv("ALLOWED_ORIGINS"), ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	v1 := router.Group("/api/v1")

	// Public routes
	authHandler.RegisterRoutes(v1)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(auth.AuthMiddleware(sessionStore))
	{
		spaceHandler.RegisterRoutes(protected)

		// WebSocket endpoint
		protected.GET("/ws/:spaceId", wsHandler.HandleWebSocket)
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
