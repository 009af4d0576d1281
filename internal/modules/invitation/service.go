package invitation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"planora/internal/domain"
	"planora/internal/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service drives an invitation through
// pending -> code_verified -> accepted, with expiry-driven eviction from the
// non-terminal states.
type Service struct {
	invitations   InvitationStore
	users         UserChecker
	mailer        Mailer
	invitationTTL time.Duration
	codeTTL       time.Duration
}

func NewService(invitations InvitationStore, users UserChecker, mailer Mailer, invitationTTL, codeTTL time.Duration) *Service {
	return &Service{
		invitations:   invitations,
		users:         users,
		mailer:        mailer,
		invitationTTL: invitationTTL,
		codeTTL:       codeTTL,
	}
}

// GenerateOrRefresh creates an invitation for the email, or regenerates the
// token and extends expiry when one already exists (idempotent re-invite).
// The old link always becomes void.
func (s *Service) GenerateOrRefresh(ctx context.Context, email string) (*domain.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now()

	token, err := jwt.GenerateOpaqueSecret()
	if err != nil {
		return nil, err
	}

	inv, err := s.invitations.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		inv = &domain.Invitation{
			Email:     email,
			Token:     token,
			Status:    domain.InvitationPending,
			ExpiresAt: now.Add(s.invitationTTL),
		}
		if err := s.invitations.Create(ctx, inv); err != nil {
			return nil, err
		}
		return inv, nil
	}

	if inv.IsTerminal() {
		return nil, ErrAlreadyAccepted
	}

	if err := s.invitations.Refresh(ctx, inv.ID, token, now.Add(s.invitationTTL)); err != nil {
		return nil, err
	}
	inv.Token = token
	inv.Status = domain.InvitationPending
	inv.Code = nil
	inv.CodeExpiresAt = nil
	inv.ExpiresAt = now.Add(s.invitationTTL)
	return inv, nil
}

// CodeRequestResult reports the outcome of a code request: either a code was
// sent, or the invitee already verified and should be redirected onward.
type CodeRequestResult struct {
	AlreadyVerified bool
	Status          domain.InvitationStatus
}

// RequestCode is called when the invitee opens the link. Already-verified
// invitations short-circuit (double-taps of the email link are idempotent);
// otherwise a fresh 6-digit code overwrites any prior one and is mailed out.
func (s *Service) RequestCode(ctx context.Context, token string) (*CodeRequestResult, error) {
	inv, err := s.getLive(ctx, token)
	if err != nil {
		return nil, err
	}

	if inv.Status == domain.InvitationCodeVerified {
		return &CodeRequestResult{AlreadyVerified: true, Status: inv.Status}, nil
	}

	if err := s.issueCode(ctx, inv); err != nil {
		return nil, err
	}
	return &CodeRequestResult{Status: inv.Status}, nil
}

// ResendCode always issues a brand-new code, superseding any prior one.
func (s *Service) ResendCode(ctx context.Context, token string) (*CodeRequestResult, error) {
	return s.RequestCode(ctx, token)
}

// VerifyCodeResult carries what the registration form needs.
type VerifyCodeResult struct {
	InvitationID    int64
	Email           string
	AlreadyVerified bool
}

// VerifyCode transitions pending -> code_verified through a single
// conditional update keyed on (token, code, unexpired code, unexpired
// invitation), so a code that expires mid-request cannot pass. An expired
// invitation is evicted like on every other access path. A token already in
// code_verified short-circuits as a redirect instead of failing.
func (s *Service) VerifyCode(ctx context.Context, token, code string) (*VerifyCodeResult, error) {
	inv, err := s.getLive(ctx, token)
	if err != nil {
		return nil, err
	}

	ok, err := s.invitations.VerifyCode(ctx, token, code, time.Now())
	if err != nil {
		return nil, err
	}
	if ok {
		return &VerifyCodeResult{InvitationID: inv.ID, Email: inv.Email}, nil
	}

	// The update matched nothing. Re-fetch: a concurrent verification may
	// have moved the status already.
	inv, err = s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if inv.Status == domain.InvitationCodeVerified {
		return &VerifyCodeResult{InvitationID: inv.ID, Email: inv.Email, AlreadyVerified: true}, nil
	}
	return nil, ErrInvalidCode
}

type RegistrationRequest struct {
	FirstName         string
	LastName          string
	Password          string
	PreferredLanguage string
}

// CompleteRegistration creates the user and moves the invitation to its
// terminal accepted state in one transaction. Only valid from code_verified.
func (s *Service) CompleteRegistration(ctx context.Context, token string, req RegistrationRequest) (*domain.User, error) {
	inv, err := s.getLive(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvitationCodeVerified {
		if inv.IsTerminal() {
			return nil, ErrAlreadyAccepted
		}
		return nil, ErrNotVerified
	}

	exists, err := s.users.ExistsByEmail(ctx, inv.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:             inv.Email,
		PasswordHash:      string(hash),
		Role:              domain.RoleUser,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PreferredLanguage: req.PreferredLanguage,
	}

	if err := s.invitations.AcceptAndCreateUser(ctx, inv.ID, user); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvitationNotVerifiable):
			return nil, ErrNotVerified
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrAlreadyRegistered
		default:
			return nil, err
		}
	}

	return user, nil
}

// getLive fetches an invitation by token and lazily evicts it when expired.
func (s *Service) getLive(ctx context.Context, token string) (*domain.Invitation, error) {
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if inv.IsTerminal() {
		return inv, nil
	}

	if inv.IsExpired(time.Now()) {
		_ = s.invitations.Delete(ctx, inv.ID)
		return nil, ErrUnauthorized
	}
	return inv, nil
}

func (s *Service) issueCode(ctx context.Context, inv *domain.Invitation) error {
	if inv.IsTerminal() {
		return ErrAlreadyAccepted
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	if err := s.invitations.SetCode(ctx, inv.ID, code, time.Now().Add(s.codeTTL)); err != nil {
		return err
	}

	return s.mailer.SendVerificationCode(ctx, inv.Email, code)
}

// generateCode picks a 6-digit code from 100000..999999 inclusive.
// Collisions across invitations are fine; codes are checked per token.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
