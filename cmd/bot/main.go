package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/config"
	"github.com/fardannozami/amchegoa/internal/infra/amqp"
	"github.com/fardannozami/amchegoa/internal/infra/exif"
	"github.com/fardannozami/amchegoa/internal/infra/gemini"
	"github.com/fardannozami/amchegoa/internal/infra/httpapi"
	"github.com/fardannozami/amchegoa/internal/infra/openrouter"
	"github.com/fardannozami/amchegoa/internal/infra/sqlite"
	"github.com/fardannozami/amchegoa/internal/infra/wa"
	"github.com/fardannozami/amchegoa/internal/logging"
	"github.com/fardannozami/amchegoa/internal/metrics"
	"github.com/fardannozami/amchegoa/internal/rewards"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Logger
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Database & Repositories
	if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	// Enable WAL mode and busy timeout to avoid "database is locked" errors
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.SQLitePath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	store := sqlite.NewStore(db, logger.Named("store"))
	if err := store.InitTable(ctx); err != nil {
		logger.Fatal("failed to init local store", zap.Error(err))
	}
	locations := sqlite.NewLocationRepository(db)
	if err := locations.InitTable(ctx); err != nil {
		logger.Fatal("failed to init location table", zap.Error(err))
	}

	catalog, err := rewards.Load(cfg.RewardsCatalog)
	if err != nil {
		logger.Fatal("failed to load rewards catalog", zap.Error(err))
	}

	// 4. Classifier
	model, err := newVisionModel(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to build classifier", zap.Error(err))
	}
	logger.Info("classifier ready", zap.String("provider", model.Name()))

	// 5. Report sinks
	hub := httpapi.NewHub(logger.Named("feed"))
	sinks := []usecase.ReportSink{hub}
	if cfg.AMQPURL != "" {
		pub, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal("failed to connect to dispatch exchange", zap.Error(err))
		}
		defer pub.Close()
		sinks = append(sinks, amqp.NewDispatcher(pub, logger.Named("dispatch")))
	}

	// 6. Use Cases
	warnings := usecase.NewWarningPolicy(store)
	classifier := usecase.NewClassifyImageUsecase(model, warnings, logger.Named("classifier"))
	workflows := usecase.NewWorkflows(usecase.WorkflowDeps{
		Store:             store,
		Locations:         locations,
		Classifier:        classifier,
		Probe:             exif.NewProbe(),
		Sinks:             sinks,
		Listeners:         []usecase.WorkflowListener{hub},
		SyncPointsToUsers: cfg.SyncPointsToUsers,
		Logger:            logger.Named("workflow"),
	})
	historyUC := usecase.NewHistoryUsecase(store)
	leaderboardUC := usecase.NewGetLeaderboardUsecase(store)
	handleMessageUC := usecase.NewHandleMessageUsecase(
		usecase.NewAccountUsecase(store),
		historyUC,
		usecase.NewRewardsUsecase(store, catalog),
		leaderboardUC,
		workflows,
		locations,
	)

	// 7. WhatsApp Service
	waService := wa.NewService(cfg.SQLitePath, logger)
	waService.SetMessageHandler(func(ctx context.Context, evt *events.Message) {
		// Filter by GroupID if configured.
		if cfg.GroupID != "" && evt.Info.Chat.String() != cfg.GroupID {
			return
		}
		if evt.Info.IsFromMe {
			return
		}

		userID := waService.SenderID(ctx, evt.Info.Sender)
		pushName := evt.Info.PushName
		if pushName == "" {
			pushName = "Unknown"
		}
		msgLog := logger.With(zap.String("user", userID), zap.String("name", pushName))

		var response string
		var err error
		if evt.Message.GetImageMessage() != nil {
			msgLog.Info("image received")
			image, dlErr := waService.DownloadImage(ctx, evt.Message)
			if dlErr != nil {
				msgLog.Error("failed to download image", zap.Error(dlErr))
				return
			}
			image.MimeType = exif.DetectMimeType(image.Data, image.MimeType)
			response, err = handleMessageUC.HandleImage(ctx, userID, image)
		} else if loc, ok := wa.SharedLocation(evt.Message); ok {
			msgLog.Info("location received", zap.Float64("lat", loc.Lat), zap.Float64("lng", loc.Lng))
			response, err = handleMessageUC.HandleLocation(ctx, userID, loc)
		} else if text := wa.MessageText(evt.Message); text != "" {
			response, err = handleMessageUC.Execute(ctx, userID, pushName, text)
		}
		if err != nil {
			msgLog.Error("error handling message", zap.Error(err))
			return
		}
		if response == "" {
			return
		}

		// Apply reply delay to appear more human-like
		delayMs := cfg.ReplyDelayMinMs
		if cfg.ReplyDelayMaxMs > cfg.ReplyDelayMinMs {
			delayMs = cfg.ReplyDelayMinMs + rand.Intn(cfg.ReplyDelayMaxMs-cfg.ReplyDelayMinMs+1)
		}
		if delayMs > 0 {
			if cfg.ShowTyping {
				_ = waService.GetClient().SendChatPresence(ctx, evt.Info.Chat, types.ChatPresenceComposing, types.ChatPresenceMediaText)
			}
			time.Sleep(time.Duration(delayMs) * time.Millisecond)
			if cfg.ShowTyping {
				_ = waService.GetClient().SendChatPresence(ctx, evt.Info.Chat, types.ChatPresencePaused, types.ChatPresenceMediaText)
			}
		}

		if err := waService.SendText(ctx, evt.Info.Chat, response); err != nil {
			msgLog.Error("failed to send response", zap.Error(err))
		}
	})

	// 8. Initialize Client (DB, Device, etc) - DO NOT CONNECT YET
	if err := waService.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize WhatsApp service", zap.Error(err))
	}

	server := httpapi.NewServer(historyUC, leaderboardUC, hub, logger.Named("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.Run(gctx, ":"+cfg.Port)
	})
	g.Go(func() error {
		if err := login(gctx, waService, cfg.BotPhone, logger); err != nil {
			return err
		}
		logger.Info("bot is running, press Ctrl+C to exit")
		<-gctx.Done()
		logger.Info("shutting down")
		waService.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func newVisionModel(ctx context.Context, cfg config.Config) (usecase.VisionModel, error) {
	switch cfg.ClassifierProvider {
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.MaxTokens,
			BaseURL:   cfg.GeminiBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openrouter", "":
		c, err := openrouter.NewClient(openrouter.Config{
			APIKey:            cfg.OpenRouterAPIKey,
			Model:             cfg.OpenRouterModel,
			Endpoint:          cfg.OpenRouterEndpoint,
			Referer:           cfg.OpenRouterReferer,
			Title:             cfg.OpenRouterTitle,
			MaxTokens:         cfg.MaxTokens,
			RequestsPerSecond: cfg.ClassifierRPS,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown classifier provider %q", cfg.ClassifierProvider)
}

// login connects the device, pairing by phone code or QR when it has no session yet.
func login(ctx context.Context, waService *wa.Service, botPhone string, logger *zap.Logger) error {
	if waService.IsLoggedIn() {
		if err := waService.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		logger.Info("client is already logged in")
		return nil
	}

	if botPhone == "" {
		logger.Info("not logged in and BOT_PHONE not set, printing QR")
		// PrintQR handles GetQRChannel and Connect itself to avoid a race.
		waService.PrintQR(ctx)
		return nil
	}

	if err := waService.Connect(); err != nil {
		return fmt.Errorf("connect for pairing: %w", err)
	}
	logger.Info("not logged in, attempting to pair", zap.String("phone", botPhone))
	code, err := waService.Pair(ctx, botPhone)
	if err != nil {
		logger.Error("failed to generate pair code", zap.Error(err))
		return nil
	}
	fmt.Println("==================================================")
	fmt.Printf("PAIR CODE: %s\n", code)
	fmt.Println("==================================================")
	fmt.Println("Verify this code on WhatsApp (Linked Devices > Link with phone number)")
	return nil
}
