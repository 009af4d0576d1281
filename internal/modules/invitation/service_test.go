package invitation

import (
	"context"
	"regexp"
	"testing"
	"time"

	"planora/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// memStore is an in-memory InvitationStore that honors the documented
// conditional-update contracts, so state-machine flows and expiry boundaries
// can be tested end to end without a database.
type memStore struct {
	seq   int64
	byID  map[int64]*domain.Invitation
	users []*domain.User
}

func newMemStore() *memStore {
	return &memStore{byID: map[int64]*domain.Invitation{}}
}

func (s *memStore) Create(_ context.Context, inv *domain.Invitation) error {
	s.seq++
	inv.ID = s.seq
	cp := *inv
	s.byID[inv.ID] = &cp
	return nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*domain.Invitation, error) {
	for _, inv := range s.byID {
		if inv.Email == email {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memStore) GetByToken(_ context.Context, token string) (*domain.Invitation, error) {
	for _, inv := range s.byID {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memStore) Refresh(_ context.Context, id int64, token string, expiresAt time.Time) error {
	inv := s.byID[id]
	inv.Token = token
	inv.ExpiresAt = expiresAt
	inv.Status = domain.InvitationPending
	inv.Code = nil
	inv.CodeExpiresAt = nil
	return nil
}

func (s *memStore) SetCode(_ context.Context, id int64, code string, expiresAt time.Time) error {
	inv := s.byID[id]
	inv.Code = &code
	inv.CodeExpiresAt = &expiresAt
	return nil
}

func (s *memStore) VerifyCode(_ context.Context, token, code string, now time.Time) (bool, error) {
	for _, inv := range s.byID {
		if inv.Token == token &&
			inv.Status == domain.InvitationPending &&
			inv.Code != nil && *inv.Code == code &&
			inv.CodeExpiresAt != nil && !inv.CodeExpiresAt.Before(now) &&
			!inv.ExpiresAt.Before(now) {
			inv.Status = domain.InvitationCodeVerified
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) AcceptAndCreateUser(_ context.Context, invitationID int64, user *domain.User) error {
	inv, ok := s.byID[invitationID]
	if !ok || inv.Status != domain.InvitationCodeVerified {
		return domain.ErrInvitationNotVerifiable
	}
	inv.Status = domain.InvitationAccepted
	inv.Code = nil
	inv.CodeExpiresAt = nil
	user.ID = int64(len(s.users) + 1)
	s.users = append(s.users, user)
	return nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	delete(s.byID, id)
	return nil
}

type mockUserChecker struct {
	mock.Mock
}

func (m *mockUserChecker) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

type recordingMailer struct {
	codes []string
	to    []string
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, email, code string) error {
	m.to = append(m.to, email)
	m.codes = append(m.codes, code)
	return nil
}

func newTestService() (*Service, *memStore, *mockUserChecker, *recordingMailer) {
	store := newMemStore()
	users := new(mockUserChecker)
	mailer := &recordingMailer{}
	svc := NewService(store, users, mailer, 8*time.Hour, 5*time.Minute)
	return svc, store, users, mailer
}

func TestGenerateOrRefresh_CreatesInvitation(t *testing.T) {
	svc, store, _, _ := newTestService()

	inv, err := svc.GenerateOrRefresh(context.Background(), "Guest@Example.com")
	require.NoError(t, err)

	assert.Equal(t, "guest@example.com", inv.Email)
	assert.Equal(t, domain.InvitationPending, inv.Status)
	assert.NotEmpty(t, inv.Token)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), inv.ExpiresAt, 5*time.Second)
	assert.Len(t, store.byID, 1)
}

func TestGenerateOrRefresh_IsIdempotentPerEmail(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	second, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)

	assert.Len(t, store.byID, 1, "re-invite must not create a second record")
	assert.NotEqual(t, first.Token, second.Token)

	// the first link is void: code requests against it are rejected
	_, err = svc.RequestCode(ctx, first.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGenerateOrRefresh_AcceptedIsTerminal(t *testing.T) {
	svc, store, users, _ := newTestService()
	ctx := context.Background()

	acceptedInvitation(t, ctx, svc, store, users)

	_, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	assert.ErrorIs(t, err, ErrAlreadyAccepted)
}

func TestRequestCode_SendsSixDigitCode(t *testing.T) {
	svc, store, _, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)

	result, err := svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	assert.False(t, result.AlreadyVerified)

	require.Len(t, mailer.codes, 1)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), mailer.codes[0])
	assert.Equal(t, "guest@example.com", mailer.to[0])

	stored := store.byID[inv.ID]
	require.NotNil(t, stored.Code)
	assert.Equal(t, mailer.codes[0], *stored.Code)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *stored.CodeExpiresAt, 5*time.Second)
}

func TestRequestCode_UnknownToken(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.RequestCode(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRequestCode_ExpiredInvitationIsEvicted(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	store.byID[inv.ID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = svc.RequestCode(ctx, inv.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, store.byID, "expired invitation is deleted on access")
}

func TestRequestCode_AlreadyVerifiedShortCircuits(t *testing.T) {
	svc, _, _, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, inv.Token, mailer.codes[0])
	require.NoError(t, err)

	result, err := svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)
	assert.Len(t, mailer.codes, 1, "no new code for an already verified invitation")
}

func TestResendCode_SupersedesPriorCode(t *testing.T) {
	svc, store, _, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	first := mailer.codes[0]

	_, err = svc.ResendCode(ctx, inv.Token)
	require.NoError(t, err)
	require.Len(t, mailer.codes, 2)

	stored := store.byID[inv.ID]
	assert.Equal(t, mailer.codes[1], *stored.Code)

	// the superseded code no longer verifies (unless it collided)
	if first != mailer.codes[1] {
		_, err = svc.VerifyCode(ctx, inv.Token, first)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
}

func TestVerifyCode_Succeeds(t *testing.T) {
	svc, store, _, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)

	result, err := svc.VerifyCode(ctx, inv.Token, mailer.codes[0])
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", result.Email)
	assert.Equal(t, inv.ID, result.InvitationID)
	assert.Equal(t, domain.InvitationCodeVerified, store.byID[inv.ID].Status)
}

func TestVerifyCode_ExpiryBoundary(t *testing.T) {
	svc, store, _, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	code := mailer.codes[0]

	// just past the 5-minute window: fails
	expired := time.Now().Add(-time.Second)
	store.byID[inv.ID].CodeExpiresAt = &expired
	_, err = svc.VerifyCode(ctx, inv.Token, code)
	assert.ErrorIs(t, err, ErrInvalidCode)

	// just inside the window: succeeds
	valid := time.Now().Add(time.Second)
	store.byID[inv.ID].CodeExpiresAt = &valid
	_, err = svc.VerifyCode(ctx, inv.Token, code)
	assert.NoError(t, err)
}

func TestVerifyCode_ExpiredInvitationIsEvicted(t *testing.T) {
	svc, store, _, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)

	// invitation lapses while the code's own window is still open
	store.byID[inv.ID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = svc.VerifyCode(ctx, inv.Token, mailer.codes[0])
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, store.byID, "expired invitation is deleted on access")
}

func TestVerifyCode_WrongCode(t *testing.T) {
	svc, _, _, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)

	wrong := "000000"
	if mailer.codes[0] == wrong {
		wrong = "000001"
	}
	_, err = svc.VerifyCode(ctx, inv.Token, wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyCode_AlreadyVerifiedRedirects(t *testing.T) {
	svc, _, _, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, inv.Token, mailer.codes[0])
	require.NoError(t, err)

	result, err := svc.VerifyCode(ctx, inv.Token, mailer.codes[0])
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)
}

func TestCompleteRegistration_CreatesUserAndAccepts(t *testing.T) {
	svc, store, users, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, inv.Token, mailer.codes[0])
	require.NoError(t, err)

	users.On("ExistsByEmail", mock.Anything, "guest@example.com").Return(false, nil)

	user, err := svc.CompleteRegistration(ctx, inv.Token, RegistrationRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "Secret1!pass",
	})
	require.NoError(t, err)

	assert.Equal(t, "guest@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Secret1!pass")))
	assert.Equal(t, domain.InvitationAccepted, store.byID[inv.ID].Status)

	// terminal: no further transitions, including code re-sends
	_, err = svc.ResendCode(ctx, inv.Token)
	assert.ErrorIs(t, err, ErrAlreadyAccepted)
}

func TestCompleteRegistration_RequiresVerifiedCode(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)

	_, err = svc.CompleteRegistration(ctx, inv.Token, RegistrationRequest{
		FirstName: "Ada", LastName: "Lovelace", Password: "Secret1!pass",
	})
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestCompleteRegistration_GuardsDoubleSubmit(t *testing.T) {
	svc, _, users, mailer := newTestService()
	ctx := context.Background()

	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, inv.Token, mailer.codes[0])
	require.NoError(t, err)

	users.On("ExistsByEmail", mock.Anything, "guest@example.com").Return(true, nil)

	_, err = svc.CompleteRegistration(ctx, inv.Token, RegistrationRequest{
		FirstName: "Ada", LastName: "Lovelace", Password: "Secret1!pass",
	})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func acceptedInvitation(t *testing.T, ctx context.Context, svc *Service, store *memStore, users *mockUserChecker) {
	t.Helper()
	inv, err := svc.GenerateOrRefresh(ctx, "guest@example.com")
	require.NoError(t, err)
	_, err = svc.RequestCode(ctx, inv.Token)
	require.NoError(t, err)
	stored := store.byID[inv.ID]
	_, err = svc.VerifyCode(ctx, inv.Token, *stored.Code)
	require.NoError(t, err)
	users.On("ExistsByEmail", mock.Anything, "guest@example.com").Return(false, nil)
	_, err = svc.CompleteRegistration(ctx, inv.Token, RegistrationRequest{
		FirstName: "Ada", LastName: "Lovelace", Password: "Secret1!pass",
	})
	require.NoError(t, err)
}
