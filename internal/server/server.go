// Package server assembles the HTTP API from configuration.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/admissions"
	"schoolsite/internal/alumni"
	"schoolsite/internal/auth"
	"schoolsite/internal/cmsclient"
	"schoolsite/internal/donations"
	"schoolsite/internal/events"
	"schoolsite/internal/health"
	"schoolsite/internal/live"
	"schoolsite/internal/metrics"
	"schoolsite/internal/news"
	"schoolsite/internal/portal"
	"schoolsite/internal/robotics"
	"schoolsite/internal/submissions"
	"schoolsite/internal/web"
	"schoolsite/pkg/cms"
	"schoolsite/pkg/config"
	"schoolsite/pkg/logger"
)

// App is the wired API plus the background pieces main has to run and stop.
type App struct {
	Router   *gin.Engine
	CMS      *cmsclient.Client
	Hub      *live.Hub
	Health   *health.Checker
	Metrics  *metrics.Metrics
	Sessions *auth.Repo

	log logger.Logger
}

// NewCMSClient builds the content client from configuration.
func NewCMSClient(cfg config.CMS, opts ...cmsclient.Option) *cmsclient.Client {
	return cmsclient.New(cmsclient.Config{
		BaseURL:       cfg.BaseURL,
		APIToken:      cfg.APIToken,
		Timeout:       cfg.Timeout,
		RetryAttempts: cfg.RetryAttempts,
		CacheTTL:      cfg.CacheTTL,
		CacheSize:     cfg.CacheSize,
	}, opts...)
}

func New(cfg *config.Config, db *sql.DB, log logger.Logger) *App {
	m := metrics.New()
	client := NewCMSClient(cfg.CMS, cmsclient.WithObserver(m), cmsclient.WithLogger(log))
	hub := live.NewHub(log)

	checker := health.NewChecker(2 * time.Second)
	checker.Add("db", db.PingContext)
	checker.Add("cms", client.Ping)

	media := cms.NewMediaResolver(cfg.CMS.MediaBase())
	rec := &submissions.Recorder{Repo: submissions.NewRepo(db), Announcer: hub, Counter: m}
	// Each form endpoint counts against its own budget.
	limit := func() gin.HandlerFunc { return web.RateLimit(cfg.Limits.SubmitRate, cfg.Limits.SubmitPeriod) }

	tokens := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTTTL,
	}
	sessions := auth.NewRepo(db, auth.NewSealer(cfg.Auth.SessionKey))

	router := gin.New()
	router.Use(gin.Recovery(), web.RequestLogger(log), web.CORS(cfg.Server.CORSOrigins), m.Middleware())
	_ = router.SetTrustedProxies(cfg.Server.TrustedProxies)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", checker.Ready())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	if cfg.Live.StaffKey != "" {
		router.GET("/ws/feed", live.WSHandler(hub, cfg.Live.StaffKey, cfg.Server.CORSOrigins))
	}

	api := router.Group("/api")

	// Public content
	events.NewHandler(events.NewRepo(client, media)).RegisterRoutes(api)
	news.NewHandler(news.NewRepo(client, media)).RegisterRoutes(api)
	robotics.NewHandler(robotics.NewRepo(client, media)).RegisterRoutes(api.Group("/robotics"))
	alumni.NewHandler(alumni.NewRepo(client), rec, limit()).RegisterRoutes(api.Group("/alumni"))
	admissions.NewHandler(admissions.NewRepo(client, media), rec, limit()).RegisterRoutes(api.Group("/admissions"))

	// Portals
	parentAuth := auth.NewHandler(sessions, tokens, client, auth.RoleParent, cfg.Auth.SecureCookies)
	parentAuth.RegisterRoutes(api.Group("/auth"))
	studentAuth := auth.NewHandler(sessions, tokens, client, auth.RoleStudent, cfg.Auth.SecureCookies)
	studentAuth.RegisterRoutes(api.Group("/student-auth"))

	portalRepo := portal.NewRepo(client, media, cfg.School.TargetYear)
	portal.NewParentHandler(portalRepo, parentAuth.Require(), rec).RegisterRoutes(api.Group("/parents"))
	portal.NewStudentHandler(portalRepo, studentAuth.Require()).RegisterRoutes(api.Group("/students"))

	// Donations
	svc := &donations.Service{
		Stripe: donations.NewStripe(donations.StripeConfig{
			SecretKey: cfg.Stripe.SecretKey,
			APIBase:   cfg.Stripe.APIBase,
			Timeout:   cfg.Stripe.Timeout,
		}),
		CMS:        client,
		Ledger:     donations.NewLedger(db),
		Announcer:  hub,
		Counter:    m,
		School:     cfg.School.Name,
		Currency:   cfg.Stripe.Currency,
		PublicURL:  cfg.Server.PublicURL,
		SuccessURL: cfg.Stripe.SuccessPath,
		CancelURL:  cfg.Stripe.CancelPath,
	}
	donations.NewHandler(svc, cfg.Stripe.WebhookSecret, limit()).RegisterRoutes(api.Group("/donations"))

	return &App{
		Router:   router,
		CMS:      client,
		Hub:      hub,
		Health:   checker,
		Metrics:  m,
		Sessions: sessions,
		log:      log,
	}
}

// Background runs the health probe and the expired-session sweep until ctx
// is done.
func (a *App) Background(ctx context.Context) {
	ctx = logger.WithContext(ctx, a.log)
	go a.Health.Run(ctx, 30*time.Second)

	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := a.Sessions.DeleteExpired(ctx, now)
			if err != nil {
				a.log.Warn("session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				a.log.Info("expired sessions removed", "count", n)
			}
		}
	}
}
