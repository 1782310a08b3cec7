package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"scholarship-exam-service/internal/app"
	"scholarship-exam-service/internal/auth"
	"scholarship-exam-service/internal/config"
	"scholarship-exam-service/internal/infra/blob"
	"scholarship-exam-service/internal/infra/gateway"
	"scholarship-exam-service/internal/infra/idp"
	"scholarship-exam-service/internal/infra/memory"
	pgstore "scholarship-exam-service/internal/infra/postgres"
	redisstore "scholarship-exam-service/internal/infra/redis"
	"scholarship-exam-service/internal/scorecard"
	transport "scholarship-exam-service/internal/transport/http"
)

type testStore interface {
	app.TestRepository
	app.SessionRepository
}

type scorecardQueue interface {
	app.ScorecardQueue
	scorecard.Source
}

// backend holds the stores selected by configuration. Postgres and Redis are
// optional; without them the in-memory implementations are used.
type backend struct {
	cfg   config.Config
	pool  *pgxpool.Pool
	redis *redis.Client

	tests      testStore
	exams      app.ExamCache
	attempts   app.AttemptRepository
	payments   app.PaymentRepository
	candidates app.CandidateRepository
	orders     app.OrderRegistry
	orphans    app.OrphanRegistry
	queue      scorecardQueue
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{cfg: cfg}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.tests = pgstore.NewTestRepository(pool)
		b.attempts = pgstore.NewAttemptRepository(pool)
		b.payments = pgstore.NewPaymentRepository(pool)
		b.candidates = pgstore.NewCandidateRepository(pool)
	} else {
		log.Warn().Msg("postgres not configured, using in-memory stores")
		tests := memory.NewTestRepository()
		payments := memory.NewPaymentRepository()
		b.tests = tests
		b.attempts = memory.NewAttemptRepository()
		b.payments = payments
		b.candidates = memory.NewCandidateRepository(payments.DeleteForCandidate)
	}

	cacheTTL := config.TTLDuration(cfg.Exam.CacheTTL, 5*time.Minute)
	orderTTL := config.TTLDuration(cfg.Gateway.OrderTTL, 24*time.Hour)
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.exams = redisstore.NewExamCache(b.redis, b.tests, cacheTTL)
		b.orders = redisstore.NewOrderRegistry(b.redis, orderTTL)
		b.orphans = redisstore.NewOrphanRegistry(b.redis)
		b.queue = redisstore.NewScorecardQueue(b.redis, cfg.Scorecard.Queue)
	} else {
		log.Warn().Msg("redis not configured, using in-memory cache and queue")
		b.exams = memory.NewExamCache(b.tests, cacheTTL)
		b.orders = memory.NewOrderRegistry()
		b.orphans = memory.NewOrphanRegistry()
		b.queue = memory.NewScorecardQueue(64)
	}
	return b, nil
}

func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
}

func (b *backend) health(r *http.Request) error {
	if b.pool != nil {
		if err := b.pool.Ping(r.Context()); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Ping(r.Context()).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (b *backend) candidateService() *app.CandidateService {
	identities := idp.NewClient(b.cfg.Identity.BaseURL, b.cfg.Identity.APIKey,
		config.TTLDuration(b.cfg.Identity.Timeout, 10*time.Second))
	return app.NewCandidateService(b.candidates, identities, b.orphans)
}

func (b *backend) services() transport.Services {
	gate := app.NewAdmissionGate(b.candidates, b.payments)
	hub := app.NewLeaderboardHub()
	rankings := app.NewRankingService(b.exams, b.attempts, b.candidates, b.tests, b.queue, hub)

	gw := gateway.NewClient(gateway.Config{
		BaseURL:      b.cfg.Gateway.BaseURL,
		ClientID:     b.cfg.Gateway.ClientID,
		ClientSecret: b.cfg.Gateway.ClientSecret,
		APIVersion:   b.cfg.Gateway.APIVersion,
		Timeout:      config.TTLDuration(b.cfg.Gateway.Timeout, 10*time.Second),
	})
	payments := app.NewPaymentService(b.exams, b.payments, gate, b.orders, gw,
		gateway.NewSigner(b.cfg.Gateway.WebhookSecret), app.PaymentConfig{
			Currency:  b.cfg.Gateway.Currency,
			ReturnURL: b.cfg.Gateway.ReturnURL,
			NotifyURL: b.cfg.Gateway.NotifyURL,
		})

	return transport.Services{
		Attempts:   app.NewAttemptService(b.exams, b.attempts, gate, app.NewShuffler(nil)).WithNotifier(rankings),
		Payments:   payments,
		Rankings:   rankings,
		Tests:      app.NewTestService(b.tests, b.tests, b.attempts, b.exams),
		Candidates: b.candidateService(),
	}
}

func (b *backend) router(svc transport.Services) http.Handler {
	return transport.NewRouter(svc, transport.RouterConfig{
		Verifier:       auth.NewVerifier(b.cfg.Auth.JWTSecret),
		Roles:          auth.DefaultRoleResolver(b.candidates),
		AllowedOrigins: b.cfg.Server.CORSOrigins,
		Health:         b.health,
	})
}

func (b *backend) worker() (*scorecard.Worker, error) {
	store, err := blob.NewFSStore(b.cfg.Scorecard.BlobDir)
	if err != nil {
		return nil, err
	}
	wait := config.TTLDuration(b.cfg.Scorecard.PollWait, 5*time.Second)
	return scorecard.NewWorker(b.queue, store, scorecard.PDFRenderer{}, wait), nil
}
