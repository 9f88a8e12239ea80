package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"adboard/internal/app/commands"
	chatapp "adboard/internal/app/handlers/chat"
	"adboard/internal/app/middleware"
	"adboard/internal/app/outbox"
	"adboard/internal/app/policies"
	"adboard/internal/app/queries"
	"adboard/internal/app/uow"
	"adboard/internal/infra/broker/kafka"
	"adboard/internal/infra/config"
	mongodb "adboard/internal/infra/db/mongo"
	ginserver "adboard/internal/infra/http/gin"
	"adboard/internal/infra/notify"
	"adboard/internal/infra/obs"
	infraoutbox "adboard/internal/infra/outbox"
	"adboard/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	if cfg.StorageMode == config.StorageMemory && cfg.FixturesPath != "" {
		if err := app.loadChatFixtures(cfg.FixturesPath, logger); err != nil {
			logger.Warn("chat fixtures load failed", "error", err, "path", cfg.FixturesPath)
		}
	}

	var wg sync.WaitGroup
	for _, worker := range app.workers {
		worker := worker
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background worker stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
		wg.Wait()
		os.Exit(1)
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	workers  []func(context.Context) error
	ready    func() error

	memUsers *memory.UserDirectory
	memAds   *memory.AdDirectory
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, error) {
	var (
		app         application
		uowFactory  uow.UoWFactory
		outboxStore outbox.Outbox
		idStore     middleware.IdempotencyStore
		ownership   policies.OwnershipPort
		directory   policies.UserDirectory
		resolver    ginserver.TokenResolver
	)

	relay := &notify.Relay{
		Notifier: notify.LogNotifier{Logger: logger},
		Logger:   logger,
	}

	switch cfg.StorageMode {
	case config.StorageMongo:
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, fmt.Errorf("connect mongo: %w", err)
		}
		convRepo := mongodb.NewConversationRepository(client.DB)
		ads := mongodb.NewAdDirectory(client.DB)
		users := mongodb.NewUserDirectory(client.DB)
		store := infraoutbox.NewStore(client.DB)

		uowFactory = mongodb.Factory{DB: client.DB, ConversationsRepo: convRepo}
		outboxStore = store
		idStore = mongodb.NewIdempotencyStore(client.DB)
		ownership = ads
		directory = users
		resolver = users
		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}

		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
			if err != nil {
				return application{}, fmt.Errorf("connect kafka: %w", err)
			}
			worker := &infraoutbox.Worker{
				Store:       store,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Backoff:     cfg.RetryBackoff,
			}
			app.workers = append(app.workers, worker.Run)

			consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, relay)
			if err != nil {
				return application{}, fmt.Errorf("connect kafka consumer: %w", err)
			}
			topic := cfg.KafkaTopicPrefix + "chat.events.v1"
			app.workers = append(app.workers, func(ctx context.Context) error {
				defer consumer.Close()
				return consumer.Run(ctx, []string{topic})
			})
		} else {
			logger.Warn("kafka brokers not configured, chat events stay in the outbox")
		}

	case config.StorageMemory:
		convRepo := memory.NewConversationRepository()
		ads := memory.NewAdDirectory()
		users := memory.NewUserDirectory()
		box := memory.NewOutbox()
		box.Dispatch = relay.HandleRecord

		uowFactory = memory.Factory{ConversationsRepo: convRepo}
		outboxStore = box
		idStore = memory.NewIdempotencyStore()
		ownership = ads
		directory = users
		resolver = users
		app.ready = func() error { return nil }
		app.memUsers = users
		app.memAds = ads

	default:
		return application{}, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, chatapp.SendMessageCommand{}.Key(), &chatapp.SendMessageHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Encoder:    outbox.JSONEventEncoder{},
	})
	commands.RegisterHandler(commandBus, chatapp.GetMessagesCommand{}.Key(), &chatapp.GetMessagesHandler{
		UoWFactory: uowFactory,
	})
	commands.RegisterHandler(commandBus, chatapp.FlagSuspiciousCommand{}.Key(), &chatapp.FlagSuspiciousHandler{
		UoWFactory: uowFactory,
		Outbox:     outboxStore,
		Encoder:    outbox.JSONEventEncoder{},
	})
	commands.RegisterHandler(commandBus, chatapp.DeactivateCommand{}.Key(), &chatapp.DeactivateHandler{
		UoWFactory: uowFactory,
	})
	commands.RegisterHandler(commandBus, chatapp.SetDisplayNameCommand{}.Key(), &chatapp.SetDisplayNameHandler{
		Directory: directory,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, chatapp.ListConversationsQuery{}.Key(), &chatapp.ListConversationsHandler{
		UoWFactory: uowFactory,
		Ownership:  ownership,
		Directory:  directory,
	})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(idStore, nil),
		middleware.Transaction(uowFactory, nil),
		middleware.OutboxFlush(outboxStore),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	app.handlers = ginserver.Handlers{
		Chat: ginserver.ChatHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
			Logger:   logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Resolver: resolver, Logger: logger}.Handle,
	}
	return app, nil
}

// loadChatFixtures seeds the in-memory directories so the service is
// usable without the marketplace core: users with tokens and display
// names, ads with owners.
func (a application) loadChatFixtures(path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("chat fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}

	var fixtures chatFixtures
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	if a.memUsers != nil {
		for _, user := range fixtures.Users {
			a.memUsers.Put(user.ID, user.DisplayName, user.Token)
		}
	}
	if a.memAds != nil {
		for _, ad := range fixtures.Ads {
			a.memAds.Put(ad.ID, ad.OwnerID)
		}
	}
	logger.Info("chat fixtures imported", "users", len(fixtures.Users), "ads", len(fixtures.Ads))
	return nil
}

type chatFixtures struct {
	Users []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Token       string `json:"token"`
	} `json:"users"`
	Ads []struct {
		ID      string `json:"id"`
		OwnerID string `json:"owner_id"`
	} `json:"ads"`
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
