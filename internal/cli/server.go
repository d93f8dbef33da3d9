package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-rooms-service/internal/app"
	"quiz-rooms-service/internal/config"
	"quiz-rooms-service/internal/domain"
	"quiz-rooms-service/internal/infra/auth"
	"quiz-rooms-service/internal/infra/memory"
	pgstore "quiz-rooms-service/internal/infra/postgres"
	redisstore "quiz-rooms-service/internal/infra/redis"
	transport "quiz-rooms-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz rooms server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var states app.GameStateRepository
	var counters app.CounterStore
	if redisClient != nil {
		states = redisstore.NewGameStateStore(redisClient)
		counters = redisstore.NewCounterStore(redisClient)
	} else {
		states = memory.NewGameStateStore()
		counters = memory.NewCounterStore()
	}

	var roomRepo app.RoomRepository = memory.NewRoomRepository()
	var archiveSink app.ArchiveSink = memory.NewArchiveStore()
	if cfg.Postgres.URL != "" {
		bunDB := openBunDB(cfg.Postgres.URL)
		defer bunDB.Close()
		roomRepo = pgstore.NewRoomRepository(bunDB)
		archiveSink = pgstore.NewArchiveSink(bunDB)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = "insecure-dev-secret"
		log.Printf("auth.jwt_secret not set, using the insecure development secret")
	}
	verifier := auth.NewJWTVerifier(secret)

	scoring := app.ScoringConfig{
		GracePeriod:   config.TTLDuration(cfg.Game.GracePeriod, app.DefaultScoring.GracePeriod),
		BasePoints:    config.IntOr(cfg.Game.BasePoints, app.DefaultScoring.BasePoints),
		SpeedBonusMax: config.IntOr(cfg.Game.SpeedBonusMax, app.DefaultScoring.SpeedBonusMax),
	}

	limiter := app.NewRateLimiter(counters, rateLimitPolicies(cfg))
	hub := app.NewRoomHub()
	roomService := app.NewRoomService(roomRepo, quizRepo, states, auth.NewArgon2idHasher())
	gameService := app.NewGameService(roomRepo, quizRepo, states, scoring)

	retention := config.TTLDuration(cfg.Archive.Retention, app.DefaultRetention)
	interval := config.TTLDuration(cfg.Archive.Interval, 24*time.Hour)
	archiver := app.NewArchiver(states, roomRepo, archiveSink, retention)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go archiver.Run(sweepCtx, interval)

	wsHandler := transport.NewWSHandler(roomService, gameService, hub, limiter, verifier)
	roomsHandler := transport.NewRoomsHandler(roomService, limiter, verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("POST /rooms", roomsHandler.CreateRoom)
	mux.HandleFunc("POST /rooms/join", roomsHandler.JoinRoom)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz rooms service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func rateLimitPolicies(cfg config.Config) map[string]app.RateLimitPolicy {
	policies := make(map[string]app.RateLimitPolicy, len(app.DefaultRateLimits))
	for action, policy := range app.DefaultRateLimits {
		policies[action] = policy
	}
	for action, raw := range cfg.RateLimits {
		policies[action] = app.RateLimitPolicy{
			MaxRequests: raw.MaxRequests,
			Window:      config.TTLDuration(raw.Window, time.Second),
		}
	}
	return policies
}

// sampleQuizzes provides a minimal quiz bank for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					Prompt:        "What is 2 + 2?",
					Options:       []string{"3", "4", "5", "22"},
					CorrectAnswer: 1,
				},
				{
					Prompt:        "Which planet is closest to the sun?",
					Options:       []string{"Venus", "Earth", "Mercury", "Mars"},
					CorrectAnswer: 2,
				},
			},
		},
	}
}
