// Package credential hashes and verifies principal secrets.
//
// Hashing runs behind a weighted semaphore so a burst of logins cannot pin
// every scheduler thread on bcrypt; callers queue for a worker slot instead.
package credential

import (
	"context"
	"errors"
	"log/slog"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"gatehouse/internal/platform/metrics"
	dErrors "gatehouse/pkg/domain-errors"
)

const (
	defaultCost     = bcrypt.DefaultCost
	defaultWorkers  = 4
	defaultMinScore = 60

	// Score is split evenly between length and character-class coverage.
	maxLengthPoints = 50
	maxClassPoints  = 50
	fullLengthAt    = 16
	minLength       = 8
	minClasses      = 3
)

// Config holds the immutable tuning knobs for the credential service.
type Config struct {
	// Cost is the bcrypt work factor.
	Cost int
	// MinScore is the minimum Score() value accepted by Hash.
	MinScore int
	// Workers bounds concurrent bcrypt operations.
	Workers int
}

// Service hashes and verifies secrets with bounded concurrency.
type Service struct {
	cost     int
	minScore int
	workers  *semaphore.Weighted
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a credential service. Zero-valued config fields fall back to
// defaults so tests can construct a Service with Config{}.
func New(cfg Config, opts ...Option) *Service {
	if cfg.Cost < bcrypt.MinCost {
		cfg.Cost = defaultCost
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = defaultMinScore
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}

	svc := &Service{
		cost:     cfg.Cost,
		minScore: cfg.MinScore,
		workers:  semaphore.NewWeighted(int64(cfg.Workers)),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Hash produces a bcrypt hash of password after enforcing the strength
// policy. Weak secrets fail with CodeWeakSecret before any CPU-heavy work.
// The plaintext is never logged.
func (s *Service) Hash(ctx context.Context, password string) (string, error) {
	if len(password) < minLength {
		return "", dErrors.New(dErrors.CodeWeakSecret, "password must be at least 8 characters")
	}
	if classCount(password) < minClasses {
		return "", dErrors.New(dErrors.CodeWeakSecret, "password must mix at least 3 of: lowercase, uppercase, digits, symbols")
	}
	if score := Score(password); score < s.minScore {
		return "", dErrors.New(dErrors.CodeWeakSecret, "password is too weak")
	}

	if err := s.acquireWorker(ctx); err != nil {
		return "", err
	}
	defer s.releaseWorker()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify checks password against a stored hash. bcrypt's comparison is
// constant-time with respect to the hash contents.
func (s *Service) Verify(ctx context.Context, password, hash string) error {
	if err := s.acquireWorker(ctx); err != nil {
		return err
	}
	defer s.releaseWorker()

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}
	return nil
}

// Score rates a password from 0 to 100. Half the score comes from length
// (full marks at 16+ characters), half from character-class coverage.
// Passwords covering fewer than 3 classes are capped well below any sane
// acceptance threshold.
func Score(password string) int {
	length := len(password)
	if length < minLength {
		return 0
	}
	if length > fullLengthAt {
		length = fullLengthAt
	}
	lengthPoints := maxLengthPoints * length / fullLengthAt

	classes := classCount(password)
	classPoints := maxClassPoints * classes / 4

	score := lengthPoints + classPoints
	if classes < minClasses && score > 40 {
		score = 40
	}
	return score
}

func classCount(password string) int {
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	count := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			count++
		}
	}
	return count
}

func (s *Service) acquireWorker(ctx context.Context) error {
	if s.metrics != nil {
		s.metrics.HashQueueDepth.Inc()
		defer s.metrics.HashQueueDepth.Dec()
	}
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "hashing worker unavailable")
	}
	return nil
}

func (s *Service) releaseWorker() {
	s.workers.Release(1)
}
