package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/backend"
	"storefront/internal/backend/memory"
	"storefront/internal/backend/scylla"
	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/identity"
	"storefront/internal/middleware"
	"storefront/internal/notifier"
	"storefront/internal/order"
	"storefront/internal/pricing"
	"storefront/internal/routes"
	"storefront/internal/services"
	"storefront/internal/session"
	"storefront/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "storefront").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Configuration invalide")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := utils.NewTokens(cfg.JWTSecret, utils.DefaultTokenTTL)
	store, closeBackend := connectBackend(ctx, cfg, tokens)
	defer closeBackend()

	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Connexion Redis impossible")
	}
	defer rdb.Close()

	prices := pricing.NewBuilder(cache.NewProductCache(rdb, store, cfg.ProductCacheTTL), imageSigner(ctx, cfg))

	bus := notifier.NewRedisBus(rdb)
	var completions order.Completions
	if cfg.CheckoutMode == config.CheckoutAuto {
		completions = notifier.NewAutoCompleter(bus, cfg.CheckoutRedirectBase)
	}

	cookies := session.NewCookieStore(cfg.SessionSecret, cfg.CookieSecure)
	issuer := session.NewIssuer(cookies)

	h := &handlers.Handler{
		Accounts:    store,
		Orders:      store,
		Prices:      prices,
		Carts:       cart.NewRedisStore(rdb, cfg.CartTTL),
		Reconciler:  order.NewReconciler(store, store, identity.NewResolver(store), completions),
		Sessions:    issuer,
		Visitors:    session.NewVisitors(cookies),
		ResetTokens: cache.NewResetTokens(rdb),
		Mailer:      mailer(cfg),
		Publisher:   bus,

		FrontendURL:          cfg.FrontendURL,
		CheckoutRedirectBase: cfg.CheckoutRedirectBase,
		StripeWebhookSecret:  cfg.StripeWebhookSecret,
	}

	hub := notifier.NewHub(bus, tokens, cfg.CORSOrigins)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	routes.RegisterRoutes(r, h, issuer, store, middleware.NewRateLimits(rdb), routes.Options{
		CORSOrigins: cfg.CORSOrigins,
		Stripe:      cfg.CheckoutMode == config.CheckoutStripe,
		Hub:         hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.Backend).Str("checkout", cfg.CheckoutMode).Msg("🚀 Serveur lancé")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Serveur arrêté")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Arrêt en cours")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// les WebSockets détournées ne sont pas suivies par srv.Shutdown
	if err := hub.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Fermeture WebSocket incomplète")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ Arrêt forcé du serveur")
	}
}

func connectBackend(ctx context.Context, cfg *config.Config, tokens *utils.Tokens) (backend.Backend, func()) {
	if cfg.Backend == config.BackendMemory {
		mem := memory.New(tokens)
		mem.Seed(demoCatalog()...)
		log.Warn().Msg("⚠️ Backend mémoire : les données sont perdues à l'arrêt")
		return mem, func() {}
	}

	sess, err := database.ConnectScylla(cfg.Scylla)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Connexion ScyllaDB impossible")
	}
	db := scylla.New(sess, tokens)
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ Migration ScyllaDB échouée")
	}
	if cfg.SeedCatalog {
		added, err := seedCatalog(ctx, db, demoCatalog())
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Seed du catalogue échoué")
		}
		log.Info().Int("added", added).Msg("🌱 Catalogue de démonstration")
	}
	return db, sess.Close
}

// imageSigner retourne nil sans MinIO : les références d'image restent brutes.
func imageSigner(ctx context.Context, cfg *config.Config) pricing.ImageSigner {
	client, err := database.ConnectMinIO(ctx, cfg.MinIO)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ MinIO indisponible, images non signées")
		return nil
	}
	if client == nil {
		return nil
	}
	return services.NewImageSigner(client, cfg.MinIO.Bucket, services.DefaultSignedURLTTL)
}

func mailer(cfg *config.Config) utils.Mailer {
	if cfg.SMTP.Host == "" {
		return utils.LogMailer{}
	}
	return utils.NewSMTPMailer(utils.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("🌐 Requête")
	}
}
