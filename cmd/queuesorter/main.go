package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/video-analitics/queuesorter/internal/api"
	"github.com/video-analitics/queuesorter/internal/config"
	"github.com/video-analitics/queuesorter/internal/scheduler"
	"github.com/video-analitics/queuesorter/internal/worker"
	"github.com/video-analitics/queuesorter/pkg/cache"
	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/fetch"
	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/nats"
	"github.com/video-analitics/queuesorter/pkg/orchestrator"
	"github.com/video-analitics/queuesorter/pkg/retriever"
	"github.com/video-analitics/queuesorter/pkg/settings"
	"github.com/video-analitics/queuesorter/pkg/sink"
	"github.com/video-analitics/queuesorter/pkg/source"

	_ "github.com/video-analitics/queuesorter/docs"
)

// pageFetcher reads both queue pages and detail pages.
type pageFetcher interface {
	fetch.Fetcher
	fetch.ItemFetcher
}

// @title Queue Sorter API
// @version 1.0
// @description Sorts rental queues by local and fetched fields, with undo.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Internal token or JWT, as "Bearer <token>"
func main() {
	cfg := config.Load()
	logger.Init(logger.IsDev())
	log := logger.Log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	var db *mongo.Database
	switch cfg.CacheBackend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
	case "mongo":
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURL))
		connectCancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to MongoDB")
		}
		defer mongoClient.Disconnect(context.Background())
		db = mongoClient.Database(cfg.MongoDB)
	case "memory":
	default:
		log.Fatal().Str("backend", cfg.CacheBackend).Msg("unknown CACHE_BACKEND")
	}

	var natsClient *nats.Client
	var publisher *nats.Publisher
	if cfg.NatsURL != "" {
		var err error
		natsClient, err = nats.New(cfg.NatsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsClient.Close()
		publisher = nats.NewPublisher(natsClient)
	}

	var fetcher pageFetcher
	if cfg.UseBrowser {
		bf, err := fetch.NewBrowserFetcher(ctx,
			fetch.WithBrowserURLTemplate(cfg.DetailsURLTemplate),
			fetch.WithSettleDelay(cfg.SettleDelay),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start browser")
		}
		defer bf.Close()
		fetcher = bf
	} else {
		fetcher = fetch.NewHTTPFetcher(
			fetch.WithTimeout(cfg.FetchTimeout),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithURLTemplate(cfg.DetailsURLTemplate),
		)
	}

	// one remote for all queues so the detail host sees a single pace
	var remotes []retriever.Retriever
	if cfg.DetailsURLTemplate != "" {
		remotes = append(remotes, retriever.NewRemote(catalog.DefaultDetails(), fetcher,
			retriever.WithDelay(cfg.FetchDelay),
			retriever.WithFetchTimeout(cfg.FetchTimeout),
		))
	}

	queues := make(map[string]api.Queue, len(cfg.Queues))
	runners := make(map[string]worker.Runner, len(cfg.Queues))
	var warmers []scheduler.Warmer

	for _, name := range cfg.Queues {
		queueCat := catalog.DefaultQueue()

		var src source.ItemSource
		var static *source.Static
		if cfg.QueuePageURL != "" {
			src = source.NewHTMLPage(cfg.QueuePage(name), fetcher, queueCat)
		} else {
			static = source.NewStatic()
			src = static
		}

		var store cache.Store
		switch {
		case redisClient != nil:
			store = cache.NewRedis(redisClient, name)
		case db != nil:
			store = cache.NewMongo(db, name)
		default:
			store = cache.NewMemory()
		}
		bloomed := cache.NewBloom(store, cfg.BloomExpectedItems, cfg.BloomFPRate)
		if err := bloomed.Warm(ctx); err != nil {
			log.Warn().Err(err).Str("queue", name).Msg("failed to warm cache filter")
		}

		var kv settings.KV = settings.NewMemoryKV()
		if redisClient != nil {
			kv = settings.NewRedisKV(redisClient)
		}

		var sinks sink.Tee
		if static != nil {
			sinks = append(sinks, sink.NewApply(static))
		}
		if publisher != nil {
			sinks = append(sinks, sink.NewNATS(publisher, nats.SubjectOrderCommitted, name))
		}
		if len(sinks) == 0 {
			sinks = append(sinks, sink.NewRecorder())
		}

		var progress orchestrator.ProgressFunc
		if publisher != nil {
			progress = publisher.ProgressFunc(250*time.Millisecond, func(err error) {
				log.Debug().Err(err).Str("queue", name).Msg("publish progress")
			})
		}

		orch, err := orchestrator.New(orchestrator.Deps{
			Namespace: name,
			Queue:     queueCat,
			Source:    src,
			Remotes:   remotes,
			Cache:     bloomed,
			Settings:  settings.NewStore(kv, name),
			Sink:      sinks,
			Progress:  progress,
		})
		if err != nil {
			log.Fatal().Err(err).Str("queue", name).Msg("failed to create orchestrator")
		}

		queues[name] = api.Queue{Orch: orch, Items: static}
		runners[name] = orch
		warmers = append(warmers, orch)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Error().Err(err).Str("path", c.Path()).Msg("request error")
			return c.Status(500).JSON(api.ErrorResponse{Error: err.Error()})
		},
	})
	app.Use(cors.New())
	app.Get("/swagger/*", swagger.HandlerDefault)
	api.SetupRoutes(app, api.NewHandler(queues), api.Auth(cfg.JWTSecret, cfg.InternalAPIToken))

	if cfg.WarmInterval > 0 && len(remotes) > 0 {
		sched, err := scheduler.New(cfg.WarmInterval, warmers...)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create scheduler")
		}
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer sched.Stop()
	}

	if natsClient != nil {
		sortProcessor := worker.NewSortProcessor(natsClient, runners)
		go func() {
			if err := sortProcessor.Run(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("sort processor error")
			}
		}()
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")
		for _, q := range queues {
			q.Orch.Cancel()
		}
		cancel()
		app.Shutdown()
	}()

	log.Info().
		Str("port", cfg.HTTPPort).
		Strs("queues", cfg.Queues).
		Str("cache", cfg.CacheBackend).
		Bool("browser", cfg.UseBrowser).
		Bool("nats", natsClient != nil).
		Msg("queuesorter started")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
