package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bifurcate/application/health"
	"bifurcate/application/ingest"
	"bifurcate/common"
	"bifurcate/middleware"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	z := NewLogger()
	defer z.Sync()

	archiveDB, err := setupArchiveDatabase()
	if err != nil {
		log.Fatal("Failed to setup archive database:", err)
	}

	// Mirror database is optional; without MIRROR_DB_* the service runs on
	// the archive store alone.
	mirrorDB, err := setupMirrorDatabase()
	if err != nil {
		log.Fatal("Failed to setup mirror database:", err)
	}

	r := SetupRouter(z, archiveDB, mirrorDB)

	srv := &http.Server{
		Addr:         listenAddr(),
		Handler:      r,
		ReadTimeout:  55 * time.Second,
		WriteTimeout: 55 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		z.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	<-ctx.Done()
	z.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		z.Warn("shutdown incomplete", zap.Error(err))
	}
}

func NewLogger() *zap.Logger {
	var zapLogger *zap.Logger
	var err error

	if os.Getenv("APP_ENV") == "production" {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}

	return zapLogger
}

func listenAddr() string {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func setupArchiveDatabase() (*gorm.DB, error) {
	dsn := os.Getenv("ARCHIVE_DB_PATH")
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect archive database: %w", err)
	}

	if err := db.AutoMigrate(&common.Transfer{}); err != nil {
		return nil, fmt.Errorf("failed to migrate archive database: %w", err)
	}

	return db, nil
}

// setupMirrorDatabase connects the optional MySQL mirror. It returns
// (nil, nil) when the MIRROR_DB_* variables are absent.
func setupMirrorDatabase() (*gorm.DB, error) {
	host := os.Getenv("MIRROR_DB_HOST")
	port := os.Getenv("MIRROR_DB_PORT")
	user := os.Getenv("MIRROR_DB_USER")
	pass := os.Getenv("MIRROR_DB_PASS")
	dbname := os.Getenv("MIRROR_DB_NAME")

	if host == "" && port == "" && user == "" && dbname == "" {
		return nil, nil
	}
	if host == "" || port == "" || user == "" || pass == "" || dbname == "" {
		return nil, fmt.Errorf("incomplete mirror database environment variables")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, pass, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect mirror database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping mirror database: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&common.Transfer{}); err != nil {
		return nil, fmt.Errorf("failed to migrate mirror database: %w", err)
	}

	return db, nil
}

func SetupRouter(z *zap.Logger, archiveDB *gorm.DB, mirrorDB *gorm.DB) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestInit())
	r.Use(middleware.ResponseInit())

	// Health endpoint (monitors both databases)
	archiveHealthRepo := health.NewRepository(archiveDB)
	var mirrorHealthRepo *health.Repository
	if mirrorDB != nil {
		mirrorHealthRepo = health.NewRepository(mirrorDB)
	}
	healthSvc := health.NewService(archiveHealthRepo, mirrorHealthRepo)
	healthHandler := health.NewHandler(healthSvc)

	// Transfer ingest endpoints
	ingestRepo := ingest.NewRepository(archiveDB)
	ingestSvc := ingest.NewService(ingestRepo, z, ingest.DefaultConfig())
	ingestHandler := ingest.NewHandler(ingestSvc)

	api := r.Group("")
	healthHandler.RegisterRoutes(api)
	ingestHandler.RegisterRoutes(api.Group("/v1/transfers"))

	return r
}
