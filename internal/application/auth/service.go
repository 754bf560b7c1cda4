package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mactrac-proxy/internal/domain"
	pkgtoken "github.com/mactrac-proxy/internal/pkg/token"
	"github.com/mactrac-proxy/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeLength  = 6
	tokenLength = 40

	defaultCodeTTL  = 10 * time.Minute
	defaultTokenTTL = 30 * 24 * time.Hour
)

type RequestCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// CodeIssue reports the outcome of RequestCode. Delivery is DeliveryFailed only
// when the service runs fail-open and the mailer returned DeliveryErr.
type CodeIssue struct {
	Email       string
	Delivery    domain.DeliveryStatus
	DeliveryErr error
}

type VerifyResult struct {
	Token     string
	Email     string
	ExpiresIn time.Duration
	ExpiresAt int64
}

type Service interface {
	RequestCode(ctx context.Context, req RequestCodeRequest) (*CodeIssue, error)
	VerifyCode(ctx context.Context, req VerifyCodeRequest) (*VerifyResult, error)
	ValidateToken(ctx context.Context, token string) (*domain.Session, error)
}

// CodeStore persists pending codes keyed by normalized email.
// Get returns an error wrapping domain.ErrNotFound when absent.
// Consume atomically deletes the code only if its hash still equals codeHash,
// and returns an error wrapping domain.ErrNotFound otherwise.
type CodeStore interface {
	Put(ctx context.Context, p *domain.PendingCode) error
	Get(ctx context.Context, email string) (*domain.PendingCode, error)
	Delete(ctx context.Context, email string) error
	Consume(ctx context.Context, email, codeHash string) error
}

// SessionStore persists sessions keyed by bearer token.
// Get returns an error wrapping domain.ErrNotFound when absent.
type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

// ServiceDeps configures NewService. Zero TTLs fall back to 10 minutes and 30 days.
type ServiceDeps struct {
	Codes    CodeStore
	Sessions SessionStore
	Mailer   Mailer
	AppName  string
	CodeTTL  time.Duration
	TokenTTL time.Duration
	// MailFailOpen keeps RequestCode successful when the mailer fails.
	MailFailOpen bool
	HashCost     int
	Now          func() time.Time
	Logger       *slog.Logger
}

type service struct {
	codes        CodeStore
	sessions     SessionStore
	mailer       Mailer
	appName      string
	codeTTL      time.Duration
	tokenTTL     time.Duration
	mailFailOpen bool
	hashCost     int
	now          func() time.Time
	log          *slog.Logger
}

func NewService(d ServiceDeps) Service {
	s := &service{
		codes:        d.Codes,
		sessions:     d.Sessions,
		mailer:       d.Mailer,
		appName:      d.AppName,
		codeTTL:      d.CodeTTL,
		tokenTTL:     d.TokenTTL,
		mailFailOpen: d.MailFailOpen,
		hashCost:     d.HashCost,
		now:          d.Now,
		log:          d.Logger,
	}
	if s.codeTTL <= 0 {
		s.codeTTL = defaultCodeTTL
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultTokenTTL
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) RequestCode(ctx context.Context, req RequestCodeRequest) (*CodeIssue, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}

	code, err := pkgtoken.NewNumericCode(codeLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}
	p := &domain.PendingCode{
		Email:     req.Email,
		CodeHash:  string(hash),
		ExpiresAt: s.now().Add(s.codeTTL).Unix(),
	}
	if err := s.codes.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCodeStore, err)
	}

	issue := &CodeIssue{Email: req.Email, Delivery: domain.DeliveryDelivered}
	if err := s.mailer.SendEmail(req.Email, s.subject(), s.body(code)); err != nil {
		s.log.ErrorContext(ctx, "failed to send code email", "email", req.Email, "fail_open", s.mailFailOpen, "err", err)
		if !s.mailFailOpen {
			return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
		}
		issue.Delivery = domain.DeliveryFailed
		issue.DeliveryErr = err
	}
	return issue, nil
}

func (s *service) subject() string {
	return s.appName + " - Your Sign-in Code"
}

func (s *service) body(code string) string {
	return fmt.Sprintf("Your %s verification code is: %s\nThis code expires in %d minutes.",
		s.appName, code, int(s.codeTTL.Minutes()))
}

func (s *service) VerifyCode(ctx context.Context, req VerifyCodeRequest) (*VerifyResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}

	p, err := s.codes.Get(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pending code: %w", err)
	}

	now := s.now()
	if p.Expired(now.Unix()) {
		if err := s.codes.Delete(ctx, req.Email); err != nil {
			s.log.WarnContext(ctx, "failed to evict expired code", "email", req.Email, "err", err)
		}
		return nil, domain.ErrCodeExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(p.CodeHash), []byte(req.Code)) != nil {
		return nil, domain.ErrCodeInvalid
	}
	// Single use: only the caller that removes this exact code gets a token.
	if err := s.codes.Consume(ctx, req.Email, p.CodeHash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("consume code: %w", err)
	}

	tok, err := pkgtoken.NewBearer(tokenLength)
	if err != nil {
		return nil, err
	}
	sess := &domain.Session{
		Token:     tok,
		Email:     req.Email,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.tokenTTL).Unix(),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &VerifyResult{Token: tok, Email: req.Email, ExpiresIn: s.tokenTTL, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *service) ValidateToken(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("missing token: %w", domain.ErrUnauthorized)
	}
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("unknown token: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Expired(s.now().Unix()) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.log.WarnContext(ctx, "failed to evict expired session", "email", sess.Email, "err", err)
		}
		return nil, fmt.Errorf("token expired: %w", domain.ErrUnauthorized)
	}
	return sess, nil
}
