package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"

	"github.com/edge-rewards/internal/application/captcha"
	"github.com/edge-rewards/internal/application/rates"
	"github.com/edge-rewards/internal/application/rewards"
	"github.com/edge-rewards/internal/config"
	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/infrastructure/awsconf"
	"github.com/edge-rewards/internal/infrastructure/dynamo"
	jwtinfra "github.com/edge-rewards/internal/infrastructure/jwt"
	"github.com/edge-rewards/internal/infrastructure/memory"
	"github.com/edge-rewards/internal/infrastructure/nowpayments"
	"github.com/edge-rewards/internal/infrastructure/prosopo"
	"github.com/edge-rewards/internal/infrastructure/ratesrv"
	redisinfra "github.com/edge-rewards/internal/infrastructure/redis"
	s3infra "github.com/edge-rewards/internal/infrastructure/s3"
	"github.com/edge-rewards/internal/infrastructure/smtp"
	"github.com/edge-rewards/internal/infrastructure/sns"
	transporthttp "github.com/edge-rewards/internal/transport/http"
)

type stores struct {
	campaigns rewards.CampaignStore
	claims    rewards.ClaimStore
	sessions  captcha.SessionStore
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	setupLogging(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// AWS config is needed by DynamoDB, S3 and SNS; it is only loaded if one
	// of them is in use.
	var awsCfg *aws.Config
	loadAWS := func() aws.Config {
		if awsCfg == nil {
			c, err := awsconf.Load(ctx, cfg)
			if err != nil {
				log.Fatalf("aws config: %v", err)
			}
			awsCfg = &c
		}
		return *awsCfg
	}

	st := openStores(ctx, cfg, loadAWS)

	if cfg.RedisAddr != "" {
		rdb, err := redisinfra.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		st.sessions = redisinfra.NewCaptchaSessionRepo(rdb)
		log.Printf("Captcha sessions stored in Redis at %s", cfg.RedisAddr)
	}

	captchaSvc := captcha.NewService(captcha.ServiceDeps{
		Verifier: prosopo.NewVerifier(prosopo.Config{
			URL:         cfg.ProsopoURL,
			Secret:      cfg.ProsopoSecret,
			Attempts:    cfg.CaptchaRetryAttempts,
			RetryDelay:  cfg.CaptchaRetryDelay,
			HTTPTimeout: cfg.NotifyTimeout,
		}),
		Sessions:     st.sessions,
		SessionTTL:   cfg.CaptchaSessionTTL,
		StoreTimeout: cfg.StoreTimeout,
	})

	sources := make([]rates.Source, 0, len(cfg.RateServerURLs))
	for _, u := range cfg.RateServerURLs {
		sources = append(sources, ratesrv.NewClient(u, cfg.RateRequestTimeout))
	}

	var payouts rewards.PayoutExecutor = payoutsDisabled{}
	if c, err := nowpayments.NewClient(cfg.NowPaymentsBaseURL, nowpayments.Credentials{
		APIKey:   cfg.NowPaymentsAPIKey,
		Email:    cfg.NowPaymentsEmail,
		Password: cfg.NowPaymentsPassword,
	}, cfg.PayoutTimeout); err == nil {
		payouts = c
	} else {
		log.Printf("WARN: payouts disabled, verified claims will park: %v", err)
	}

	deps := rewards.ServiceDeps{
		Campaigns:     st.campaigns,
		Claims:        st.claims,
		Sessions:      captchaSvc,
		Rates:         rates.NewResolver(sources, rates.WithStagger(cfg.RateStagger)),
		Payouts:       payouts,
		Mailer:        smtp.NewMailer(cfg),
		ClaimTTL:      cfg.ClaimTTL,
		StoreTimeout:  cfg.StoreTimeout,
		NotifyTimeout: cfg.NotifyTimeout,
		PayoutTimeout: cfg.PayoutTimeout,
	}
	if cfg.SNSTopicARN != "" {
		deps.Alerter = sns.NewAlerter(sns.NewClient(loadAWS(), cfg.AWSEndpointURL), cfg.SNSTopicARN)
	}
	if cfg.S3ReceiptsBucket != "" {
		deps.Receipts = s3infra.NewReceiptArchive(s3infra.NewClient(loadAWS(), cfg.AWSEndpointURL), cfg.S3ReceiptsBucket)
	}

	routerDeps := &transporthttp.Deps{
		Rewards: rewards.NewService(deps),
		Captcha: captchaSvc,
	}
	// Operator routes are optional; a missing key only disables them.
	if v, err := jwtinfra.NewVerifier(cfg.JWTPublicKeyPath); err == nil {
		routerDeps.Tokens = v
	} else {
		log.Printf("WARN: JWT verifier not available: %v", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, routerDeps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PayoutTimeout*2 + cfg.NotifyTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s)", cfg.AppPort, cfg.AppEnv, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, loadAWS func() aws.Config) stores {
	switch cfg.StoreBackend {
	case "memory":
		store := memory.NewStore()
		if err := store.Campaigns().Put(ctx, dynamo.TemplateCampaign); err != nil {
			log.Fatalf("seed campaign: %v", err)
		}
		log.Println("WARN: using in-memory store, data is lost on restart")
		return stores{campaigns: store.Campaigns(), claims: store.Claims(), sessions: store.CaptchaSessions()}
	case "dynamo":
		client := dynamo.NewClient(loadAWS(), cfg.AWSEndpointURL)
		// Creates tables if they don't exist and seeds the template campaign.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return stores{
			campaigns: dynamo.NewCampaignRepo(client, cfg.DynamoTables.Campaigns),
			claims:    dynamo.NewClaimRepo(client, cfg.DynamoTables.Claims, cfg.DynamoTables.ClaimGuards),
			sessions:  dynamo.NewCaptchaSessionRepo(client, cfg.DynamoTables.CaptchaSessions),
		}
	default:
		log.Fatalf("unknown STORE_BACKEND %q (want dynamo or memory)", cfg.StoreBackend)
		return stores{}
	}
}

func setupLogging(env string) {
	var h slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if env == "production" {
		h = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(h))
}

// payoutsDisabled stands in for the payment provider when no credentials are
// configured. Every payout fails, so confirmed claims park at verified.
type payoutsDisabled struct{}

func (payoutsDisabled) SendPayout(context.Context, domain.PayoutRequest) (*domain.PayoutResult, error) {
	return nil, errors.New("payouts disabled: NOWPayments credentials not configured")
}
