package pkg

import (
	"context"
	"fmt"

	"agency/internal/app/config"
	"agency/internal/app/dsn"
	"agency/internal/app/handler"
	"agency/internal/app/middleware"
	"agency/internal/app/notify"
	"agency/internal/app/redis"
	"agency/internal/app/repository"
	"agency/internal/app/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "agency/docs"
)

type Application struct {
	Config     *config.Config
	Router     *gin.Engine
	Repository *repository.Repository
	APIHandler *handler.APIHandler
	Middleware *middleware.AuthMiddleware
}

// NewApp собирает все зависимости HTTP-сервера
func NewApp(ctx context.Context) (*Application, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	repo, err := repository.New(dsn.FromEnv())
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	// Без MinIO сервер работает, но загрузка квитанций недоступна
	minioClient, err := storage.NewMinIOClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey,
		cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
	if err != nil {
		logrus.Warnf("MinIO unavailable, proof uploads disabled: %v", err)
		minioClient = nil
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Telegram.BotToken != "" {
		notifier = notify.NewTelegramNotifier(cfg.Telegram.BotToken)
	}

	authHandler := handler.NewAuthHandler(repo, redisClient, cfg)
	apiHandler := handler.NewAPIHandler(repo, minioClient, notifier, authHandler)
	authMiddleware := middleware.NewAuthMiddleware(redisClient, cfg)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	return &Application{
		Config:     cfg,
		Router:     router,
		Repository: repo,
		APIHandler: apiHandler,
		Middleware: authMiddleware,
	}, nil
}

func (a *Application) RunApp() {
	logrus.Info("Server start up")

	a.APIHandler.RegisterAPIRoutes(a.Router, a.Middleware)
	a.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	serverAddress := fmt.Sprintf("%s:%d", a.Config.ServiceHost, a.Config.ServicePort)
	logrus.Infof("Starting server on %s", serverAddress)

	if err := a.Router.Run(serverAddress); err != nil {
		logrus.Fatal(err)
	}

	logrus.Info("Server down")
}
