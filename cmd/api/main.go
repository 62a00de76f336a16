package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiz-arena/internal/config"
	"github.com/yourusername/quiz-arena/internal/game"
	"github.com/yourusername/quiz-arena/internal/handler"
	"github.com/yourusername/quiz-arena/internal/middleware"
	pgRepo "github.com/yourusername/quiz-arena/internal/repository/postgres"
	redisRepo "github.com/yourusername/quiz-arena/internal/repository/redis"
	ws "github.com/yourusername/quiz-arena/internal/websocket"
	"github.com/yourusername/quiz-arena/pkg/auth"
	"github.com/yourusername/quiz-arena/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	quizRepo := pgRepo.NewQuizRepo(db)
	attemptRepo := pgRepo.NewAttemptRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Результаты пишутся через декоратор с защитой от двойной записи
	attemptRecorder := redisRepo.NewDedupAttemptRecorder(attemptRepo, cacheRepo, 0)

	// Инициализируем JWTService для проверки WS-тикетов
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.WSTicketExpirySec)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// --- Инициализация PubSubProvider ---
	var pubSubProvider ws.PubSubProvider = &ws.NoOpPubSub{} // Провайдер по умолчанию

	// Создаем PubSubProvider только если кластеризация включена
	if cfg.WebSocket.Cluster.Enabled {
		log.Println("Инициализация Redis PubSub для кластерных событий...")
		redisPubSubClient, errPubSub := database.NewUniversalRedisClient(cfg.Redis)
		if errPubSub != nil {
			log.Printf("Ошибка при инициализации Redis клиента для PubSub: %v. Кластерные события будут неактивны.", errPubSub)
		} else {
			redisProvider, errProv := ws.NewRedisPubSub(redisPubSubClient)
			if errProv != nil {
				log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Кластерные события будут неактивны.", errProv)
				redisPubSubClient.Close()
			} else {
				log.Println("Redis PubSub провайдер успешно инициализирован")
				pubSubProvider = redisProvider
			}
		}
	}

	// --- Инициализация игрового оркестратора ---
	gameConfig := &game.Config{
		MaxPlayers:         cfg.Game.MaxPlayers,
		MinPlayersToStart:  cfg.Game.MinPlayersToStart,
		InterQuestionDelay: time.Duration(cfg.Game.InterQuestionDelayMs) * time.Millisecond,
		RetentionCompleted: time.Duration(cfg.Game.RetentionCompletedMin) * time.Minute,
		RetentionAbandoned: time.Duration(cfg.Game.RetentionAbandonedMin) * time.Minute,
		CodeAttempts:       game.DefaultConfig().CodeAttempts,
		CodeReservationTTL: game.DefaultConfig().CodeReservationTTL,
	}

	orchestrator := game.NewOrchestrator(
		gameConfig,
		quizRepo,
		attemptRecorder,
		[]game.DirectoryOption{game.WithCache(cacheRepo)},
		game.WithLifecyclePublisher(pubSubProvider, cfg.WebSocket.Cluster.LifecycleChannel, cfg.WebSocket.Cluster.InstanceID),
	)

	// Инициализируем обработчики
	wsManager := ws.NewManager()
	wsLimits := ws.Limits{
		MaxMessageSize:   int64(cfg.WebSocket.Limits.MaxMessageSize),
		WriteWait:        time.Duration(cfg.WebSocket.Limits.WriteWait) * time.Second,
		PongWait:         time.Duration(cfg.WebSocket.Limits.PongWait) * time.Second,
		ClientSendBuffer: cfg.WebSocket.Limits.ClientSendBuffer,
	}
	wsHandler := handler.NewWSHandler(wsManager, orchestrator, jwtService, wsLimits)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		// Production: не доверять прокси-заголовкам
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		// Development: доверяем localhost
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS (синхронизирована с CheckOrigin в ws_handler.go)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:8000", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Служебные маршруты
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active_rooms":        orchestrator.Directory().Count(),
			"rooms_created_total": orchestrator.Directory().CreatedTotal(),
			"bound_connections":   orchestrator.Registry().Count(),
		})
	})

	// WebSocket маршрут; лимит подключений по IP защищает от спама
	// переподключениями
	rateLimiter := middleware.NewRateLimiter(redisClient)
	router.GET("/ws", rateLimiter.LimitByIP(middleware.DefaultWSRateLimitConfig()), wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// Ждем сигнала остановки
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем все активные комнаты
	orchestrator.Close()

	// Закрываем PubSubProvider
	if err := pubSubProvider.Close(); err != nil {
		log.Printf("Error closing PubSub provider: %v", err)
	}

	// Graceful shutdown HTTP сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
