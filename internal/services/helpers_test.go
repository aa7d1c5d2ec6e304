package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authsvc/internal/apperr"
	"authsvc/internal/notify"
	"authsvc/internal/repositories"
	"authsvc/internal/services"
)

const testJWTSecret = "test_jwt_secret"

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, mail notify.ResetMail) error {
	args := m.Called(ctx, mail)
	return args.Error(0)
}

// capturingNotifier records every mail it is asked to send.
type capturingNotifier struct {
	mu    sync.Mutex
	mails []notify.ResetMail
	err   error
}

func (n *capturingNotifier) SendPasswordReset(_ context.Context, mail notify.ResetMail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mails = append(n.mails, mail)
	return n.err
}

func (n *capturingNotifier) last(t *testing.T) notify.ResetMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.mails, "no mail sent")
	return n.mails[len(n.mails)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	users    *repositories.MockUserRepository
	otpRepo  *repositories.MockOTPRepository
	notifier *capturingNotifier
	clock    *fakeClock
	otps     *services.OTPService
	sessions *services.SessionIssuer
	auth     *services.AuthService
	accounts *services.UserService
}

func newFixture() *fixture {
	f := &fixture{
		users:    repositories.NewMockUserRepository(),
		otpRepo:  repositories.NewMockOTPRepository(),
		notifier: &capturingNotifier{},
		clock:    newFakeClock(),
	}
	logger := zap.NewNop()
	f.otps = services.NewOTPService(f.otpRepo, f.notifier, services.DefaultOTPTTL, logger).WithClock(f.clock.Now)
	f.sessions = services.NewSessionIssuer(testJWTSecret, 0)
	f.auth = services.NewAuthService(f.users, f.otps, f.sessions, services.NewBcryptHasher(bcrypt.MinCost), logger)
	f.accounts = services.NewUserService(f.users, logger)
	return f
}

func aliceInput() services.RegisterInput {
	return services.RegisterInput{
		Username:        "alice",
		Email:           "a@x.com",
		PhoneNumber:     "555-0100",
		Password:        "Tr0ub4dor&3times!",
		ConfirmPassword: "Tr0ub4dor&3times!",
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, apperr.Code(err), "error: %v", err)
}
