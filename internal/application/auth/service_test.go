package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/mactrac-proxy/internal/domain"
	"github.com/mactrac-proxy/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) Put(ctx context.Context, p *domain.PendingCode) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockCodeStore) Get(ctx context.Context, email string) (*domain.PendingCode, error) {
	args := m.Called(ctx, email)
	if p, _ := args.Get(0).(*domain.PendingCode); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockCodeStore) Consume(ctx context.Context, email, codeHash string) error {
	return m.Called(ctx, email, codeHash).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) Delete(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

// --- helpers ---

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// memoryHarness wires the service to real in-memory stores and captures mailed codes.
type memoryHarness struct {
	svc      Service
	codes    *memory.CodeRepo
	sessions *memory.SessionRepo
	mailer   *mockMailer
	clock    *clock
	lastCode string
}

func newMemoryHarness(t *testing.T) *memoryHarness {
	t.Helper()
	return newMemoryHarnessWithCost(t, bcrypt.MinCost)
}

func newMemoryHarnessWithCost(t *testing.T, cost int) *memoryHarness {
	t.Helper()
	h := &memoryHarness{
		codes:    memory.NewCodeRepo(),
		sessions: memory.NewSessionRepo(),
		mailer:   &mockMailer{},
		clock:    newClock(),
	}
	h.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			h.lastCode = codePattern.FindString(args.String(2))
		}).
		Return(nil)
	h.svc = NewService(ServiceDeps{
		Codes:    h.codes,
		Sessions: h.sessions,
		Mailer:   h.mailer,
		AppName:  "MacTrac",
		HashCost: cost,
		Now:      h.clock.Now,
	})
	return h
}

func (h *memoryHarness) requestCode(t *testing.T, email string) string {
	t.Helper()
	_, err := h.svc.RequestCode(context.Background(), RequestCodeRequest{Email: email})
	require.NoError(t, err)
	require.Len(t, h.lastCode, 6)
	return h.lastCode
}

func hashOf(t *testing.T, code string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

// --- RequestCode ---

func TestRequestCode_InvalidEmail_ReturnsBadRequest(t *testing.T) {
	svc := NewService(ServiceDeps{HashCost: bcrypt.MinCost})
	_, err := svc.RequestCode(context.Background(), RequestCodeRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRequestCode_NormalizesEmailAndStoresHash(t *testing.T) {
	cs := &mockCodeStore{}
	ml := &mockMailer{}
	c := newClock()

	var stored *domain.PendingCode
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.PendingCode")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.PendingCode) }).
		Return(nil)
	var body string
	ml.On("SendEmail", "a@b.com", "MacTrac - Your Sign-in Code", mock.Anything).
		Run(func(args mock.Arguments) { body = args.String(2) }).
		Return(nil)

	svc := NewService(ServiceDeps{Codes: cs, Mailer: ml, AppName: "MacTrac", HashCost: bcrypt.MinCost, Now: c.Now})
	issue, err := svc.RequestCode(context.Background(), RequestCodeRequest{Email: "  A@B.com "})

	require.NoError(t, err)
	assert.Equal(t, "a@b.com", issue.Email)
	assert.Equal(t, domain.DeliveryDelivered, issue.Delivery)
	require.NotNil(t, stored)
	assert.Equal(t, "a@b.com", stored.Email)
	assert.Equal(t, c.Now().Add(10*time.Minute).Unix(), stored.ExpiresAt)

	code := codePattern.FindString(body)
	require.Len(t, code, 6)
	assert.NotContains(t, stored.CodeHash, code)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.CodeHash), []byte(code)))
	assert.Contains(t, body, "expires in 10 minutes")
	cs.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestRequestCode_StoreFailure_NothingSent(t *testing.T) {
	cs := &mockCodeStore{}
	ml := &mockMailer{}
	cs.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	svc := NewService(ServiceDeps{Codes: cs, Mailer: ml, HashCost: bcrypt.MinCost})
	_, err := svc.RequestCode(context.Background(), RequestCodeRequest{Email: "a@b.com"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCodeStore))
	ml.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestCode_DeliveryFailure_FailClosed(t *testing.T) {
	cs := &mockCodeStore{}
	ml := &mockMailer{}
	cs.On("Put", mock.Anything, mock.Anything).Return(nil)
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("535 auth failed"))

	svc := NewService(ServiceDeps{Codes: cs, Mailer: ml, HashCost: bcrypt.MinCost})
	_, err := svc.RequestCode(context.Background(), RequestCodeRequest{Email: "a@b.com"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDeliveryFailed))
	assert.Contains(t, err.Error(), "535 auth failed")
}

func TestRequestCode_DeliveryFailure_FailOpen(t *testing.T) {
	cs := &mockCodeStore{}
	ml := &mockMailer{}
	cs.On("Put", mock.Anything, mock.Anything).Return(nil)
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout"))

	svc := NewService(ServiceDeps{Codes: cs, Mailer: ml, MailFailOpen: true, HashCost: bcrypt.MinCost})
	issue, err := svc.RequestCode(context.Background(), RequestCodeRequest{Email: "a@b.com"})

	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryFailed, issue.Delivery)
	assert.EqualError(t, issue.DeliveryErr, "timeout")
	cs.AssertExpectations(t)
}

func TestRequestCode_RepeatOverwritesPendingCode(t *testing.T) {
	h := newMemoryHarness(t)
	first := h.requestCode(t, "a@b.com")
	second := h.requestCode(t, "a@b.com")
	assert.Equal(t, 1, h.codes.Len())

	if first != second {
		_, err := h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: first})
		assert.True(t, errors.Is(err, domain.ErrCodeInvalid))
	}
	_, err := h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: second})
	assert.NoError(t, err)
}

// --- VerifyCode ---

func TestVerifyCode_MissingCode_ReturnsBadRequest(t *testing.T) {
	svc := NewService(ServiceDeps{HashCost: bcrypt.MinCost})
	_, err := svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestVerifyCode_NotFound(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("Get", mock.Anything, "a@b.com").Return(nil, domain.ErrNotFound)

	svc := NewService(ServiceDeps{Codes: cs, HashCost: bcrypt.MinCost})
	_, err := svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "A@b.com", Code: "123456"})

	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestVerifyCode_StoreError_IsNotClientError(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("Get", mock.Anything, "a@b.com").Return(nil, errors.New("network"))

	svc := NewService(ServiceDeps{Codes: cs, HashCost: bcrypt.MinCost})
	_, err := svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: "123456"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrBadRequest))
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestVerifyCode_Expired_EvictsEntry(t *testing.T) {
	cs := &mockCodeStore{}
	c := newClock()
	cs.On("Get", mock.Anything, "a@b.com").Return(&domain.PendingCode{
		Email: "a@b.com", CodeHash: hashOf(t, "123456"), ExpiresAt: c.Now().Add(-time.Minute).Unix(),
	}, nil)
	cs.On("Delete", mock.Anything, "a@b.com").Return(nil)

	svc := NewService(ServiceDeps{Codes: cs, HashCost: bcrypt.MinCost, Now: c.Now})
	_, err := svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: "123456"})

	assert.ErrorIs(t, err, domain.ErrCodeExpired)
	cs.AssertExpectations(t)
}

func TestVerifyCode_Invalid_DoesNotConsume(t *testing.T) {
	cs := &mockCodeStore{}
	c := newClock()
	cs.On("Get", mock.Anything, "a@b.com").Return(&domain.PendingCode{
		Email: "a@b.com", CodeHash: hashOf(t, "123456"), ExpiresAt: c.Now().Add(time.Minute).Unix(),
	}, nil)

	svc := NewService(ServiceDeps{Codes: cs, HashCost: bcrypt.MinCost, Now: c.Now})
	_, err := svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: "654321"})

	assert.ErrorIs(t, err, domain.ErrCodeInvalid)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	cs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	cs.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyCode_ConsumeFailure_NoToken(t *testing.T) {
	cs := &mockCodeStore{}
	ss := &mockSessionStore{}
	c := newClock()
	cs.On("Get", mock.Anything, "a@b.com").Return(&domain.PendingCode{
		Email: "a@b.com", CodeHash: hashOf(t, "123456"), ExpiresAt: c.Now().Add(time.Minute).Unix(),
	}, nil)
	cs.On("Consume", mock.Anything, "a@b.com", mock.Anything).Return(errors.New("throttled"))

	svc := NewService(ServiceDeps{Codes: cs, Sessions: ss, HashCost: bcrypt.MinCost, Now: c.Now})
	_, err := svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: "123456"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrBadRequest))
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestVerifyCode_ConsumedConcurrently_NoToken(t *testing.T) {
	cs := &mockCodeStore{}
	ss := &mockSessionStore{}
	c := newClock()
	hash := hashOf(t, "123456")
	cs.On("Get", mock.Anything, "a@b.com").Return(&domain.PendingCode{
		Email: "a@b.com", CodeHash: hash, ExpiresAt: c.Now().Add(time.Minute).Unix(),
	}, nil)
	cs.On("Consume", mock.Anything, "a@b.com", hash).Return(fmt.Errorf("pending code already consumed: %w", domain.ErrNotFound))

	svc := NewService(ServiceDeps{Codes: cs, Sessions: ss, HashCost: bcrypt.MinCost, Now: c.Now})
	_, err := svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: "123456"})

	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestVerifyCode_HappyPath(t *testing.T) {
	cs := &mockCodeStore{}
	ss := &mockSessionStore{}
	c := newClock()
	cs.On("Get", mock.Anything, "a@b.com").Return(&domain.PendingCode{
		Email: "a@b.com", CodeHash: hashOf(t, "123456"), ExpiresAt: c.Now().Add(time.Minute).Unix(),
	}, nil)
	cs.On("Consume", mock.Anything, "a@b.com", mock.Anything).Return(nil)
	ss.On("Put", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.Email == "a@b.com" && len(s.Token) == 40 && s.ExpiresAt == c.Now().Add(30*24*time.Hour).Unix()
	})).Return(nil)

	svc := NewService(ServiceDeps{Codes: cs, Sessions: ss, HashCost: bcrypt.MinCost, Now: c.Now})
	result, err := svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "a@b.com", Code: " 123456 "})

	require.NoError(t, err)
	assert.Len(t, result.Token, 40)
	assert.Equal(t, "a@b.com", result.Email)
	assert.Equal(t, 30*24*time.Hour, result.ExpiresIn)
	cs.AssertExpectations(t)
	ss.AssertExpectations(t)
}

// --- end-to-end over memory stores ---

func TestFlow_CodeIsSingleUse(t *testing.T) {
	h := newMemoryHarness(t)
	code := h.requestCode(t, "user@example.com")

	result, err := h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "user@example.com", Code: code})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "user@example.com", Code: code})
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestFlow_ConcurrentVerifyMintsOneToken(t *testing.T) {
	h := newMemoryHarnessWithCost(t, bcrypt.DefaultCost)
	code := h.requestCode(t, "user@example.com")

	const attempts = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens []string
		misses int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "user@example.com", Code: code})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				tokens = append(tokens, res.Token)
				return
			}
			if errors.Is(err, domain.ErrCodeNotFound) {
				misses++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, tokens, 1)
	assert.Equal(t, attempts-1, misses)
	assert.Equal(t, 1, h.sessions.Len())
}

func TestFlow_ExpiredCodeFailsEvenWhenCorrect(t *testing.T) {
	h := newMemoryHarness(t)
	code := h.requestCode(t, "user@example.com")
	h.clock.Advance(11 * time.Minute)

	_, err := h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "user@example.com", Code: code})
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
	assert.Equal(t, 0, h.codes.Len())
}

func TestFlow_WrongCodeKeepsPendingCode(t *testing.T) {
	h := newMemoryHarness(t)
	code := h.requestCode(t, "user@example.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err := h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "user@example.com", Code: wrong})
	assert.ErrorIs(t, err, domain.ErrCodeInvalid)

	_, err = h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "user@example.com", Code: code})
	assert.NoError(t, err)
}

// --- ValidateToken ---

func TestValidateToken_Empty(t *testing.T) {
	svc := NewService(ServiceDeps{})
	_, err := svc.ValidateToken(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateToken_Unknown(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "nope").Return(nil, domain.ErrNotFound)

	svc := NewService(ServiceDeps{Sessions: ss})
	_, err := svc.ValidateToken(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateToken_LifecycleOverMemory(t *testing.T) {
	h := newMemoryHarness(t)
	code := h.requestCode(t, "user@example.com")
	result, err := h.svc.VerifyCode(context.Background(), VerifyCodeRequest{Email: "user@example.com", Code: code})
	require.NoError(t, err)

	sess, err := h.svc.ValidateToken(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", sess.Email)

	h.clock.Advance(31 * 24 * time.Hour)
	_, err = h.svc.ValidateToken(context.Background(), result.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, h.sessions.Len())
}
