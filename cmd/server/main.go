package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"admissionengine/config"
	_ "admissionengine/docs"
	"admissionengine/internal/adapters/auth"
	"admissionengine/internal/adapters/cache"
	"admissionengine/internal/adapters/email"
	"admissionengine/internal/adapters/i18n"
	"admissionengine/internal/adapters/push"
	httpdelivery "admissionengine/internal/delivery/http"
	"admissionengine/internal/delivery/http/controllers"
	"admissionengine/internal/domain"
	"admissionengine/internal/repository/postgres"
	"admissionengine/internal/services"
)

// @title						Admission Engine API
// @version					1.0
// @description				Waitlist, lottery and invitation lifecycle for capacity-limited events.
// @BasePath					/
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	logger := config.NewLogger()
	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return err
	}

	if cfg.MigrationsEnabled {
		if err := postgres.RunMigrations(cfg.DBUrl, logger); err != nil {
			return err
		}
	}

	settings := services.Settings{
		ContextTimeout:       cfg.ContextTimeout,
		ReplacementWindow:    cfg.ReplacementWindow,
		ReplacementMinWindow: cfg.ReplacementMinWindow,
		SorryLead:            cfg.SorryLead,
		SorryTolerance:       cfg.SorryTolerance,
		DedupWindow:          cfg.DedupWindow,
		ScanInterval:         cfg.ScanInterval,
		StartupGrace:         cfg.StartupGrace,
		RecentDeadline:       cfg.RecentDeadline,
		DispatchInterval:     cfg.DispatchInterval,
		DispatchBatch:        cfg.DispatchBatch,
		DispatchLease:        cfg.DispatchLease,
		DefaultLocale:        cfg.DefaultLocale,
	}

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	waitlistRepo := postgres.NewWaitlistRepository(db)
	invitationRepo := postgres.NewInvitationRepository(db)
	profileRepo := postgres.NewProfileRepository(db)
	requestRepo := postgres.NewNotificationRequestRepository(db)
	store := postgres.NewAdmissionStore(db)
	feed := postgres.NewChangeFeed(cfg.DBUrl, logger)

	deduper := services.NewStoreDeduper(requestRepo, cfg.DedupWindow)
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, deduplicating against the request table", "error", err)
		} else {
			defer client.Close()
			deduper = services.NewFallbackDeduper(cache.NewRedisDeduper(client, cfg.DedupWindow), deduper, logger)
		}
	}

	translator := i18n.NewTranslator(cfg.DefaultLocale, logger)

	// Delivery channels
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:             cfg.AWSRegion,
			AccessKeyID:        cfg.AWSAccessKeyID,
			SecretAccessKey:    cfg.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.SESInsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return err
	}
	senders := []domain.Sender{email.NewSender(mailer, email.NewTemplateRenderer())}
	if cfg.PushEnabled() {
		senders = append(senders, push.NewSender(push.NewPubNubPublisher(push.Config{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		})))
	}

	// Services
	filter := services.NewPreferenceFilter(profileRepo, logger)
	notifier := services.NewNotifier(requestRepo, filter, deduper, translator, cfg.DefaultLocale, logger)
	drawer := services.NewRandomDrawer()

	replacementService := services.NewReplacementService(eventRepo, waitlistRepo, invitationRepo, store, notifier, drawer, settings, logger)
	selectionService := services.NewSelectionService(eventRepo, waitlistRepo, invitationRepo, store, notifier, drawer, settings, logger)
	deadlineProcessor := services.NewDeadlineProcessor(store, replacementService, notifier, settings, logger)
	sorryService := services.NewSorryService(invitationRepo, store, notifier, settings, logger)
	eventService := services.NewEventService(eventRepo, store, replacementService, notifier, logger, cfg.ContextTimeout)
	waitlistService := services.NewWaitlistService(eventRepo, waitlistRepo, invitationRepo, profileRepo, notifier, logger, cfg.ContextTimeout)
	invitationService := services.NewInvitationService(eventRepo, waitlistRepo, invitationRepo, store, replacementService, notifier, logger, cfg.ContextTimeout)
	preferenceService := services.NewPreferenceService(profileRepo, cfg.ContextTimeout)

	engine := services.NewEngine(eventRepo, waitlistRepo, invitationRepo, selectionService, deadlineProcessor, sorryService, feed, settings, logger)
	dispatcher := services.NewDispatcher(requestRepo, profileRepo, senders, feed, settings, logger)

	router := httpdelivery.NewRouter(httpdelivery.Controllers{
		Event:      controllers.NewEventController(logger, translator, eventService, selectionService, replacementService),
		Waitlist:   controllers.NewWaitlistController(logger, translator, waitlistService),
		Invitation: controllers.NewInvitationController(logger, translator, invitationService),
		Preference: controllers.NewPreferenceController(logger, translator, preferenceService),
	}, auth.NewJWTVerifier(cfg.JWTSecret), translator, cfg.CORSAllowedOrigins, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		logger.Info("http server listening", "addr", server.Addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
