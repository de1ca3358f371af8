package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"akimat/internal/logger"
	"akimat/internal/models"
	"akimat/internal/repositories"
)

// SignatureVerifier checks an EDS-signed XML document (NCANode in production).
type SignatureVerifier interface {
	Verify(ctx context.Context, signedXML string) bool
}

// IdentityExtractor pulls the signer's IIN out of a signed document.
type IdentityExtractor interface {
	ExtractIdentity(ctx context.Context, signedXML string) (string, bool)
}

// UserReconciler is the slice of the user store the EDS flow needs.
type UserReconciler interface {
	GetByIIN(ctx context.Context, iin string) (*models.User, error)
	CreatePending(ctx context.Context, iin string) (*models.User, error)
}

type LoginResult struct {
	User   *models.User
	Status models.LoginStatus
}

// IsNewUser: the caller still has to complete registration.
func (r *LoginResult) IsNewUser() bool {
	return r.Status == models.LoginRegistrationRequired
}

type EDSAuthService interface {
	Authenticate(ctx context.Context, signedXML string) (*LoginResult, error)
	Login(ctx context.Context, signedXML string) (*models.EDSLoginResponse, error)
}

type edsAuthService struct {
	verifier  SignatureVerifier
	extractor IdentityExtractor
	users     UserReconciler
	tokens    TokenService
	log       zerolog.Logger
}

func NewEDSAuthService(verifier SignatureVerifier, extractor IdentityExtractor, users UserReconciler, tokens TokenService) EDSAuthService {
	return &edsAuthService{
		verifier:  verifier,
		extractor: extractor,
		users:     users,
		tokens:    tokens,
		log:       logger.Component("eds"),
	}
}

// Authenticate runs verify -> extract -> find-or-create -> lifecycle decision.
// Verification always comes first: nothing is looked up or created for a
// document whose signature did not check out.
func (s *edsAuthService) Authenticate(ctx context.Context, signedXML string) (*LoginResult, error) {
	if strings.TrimSpace(signedXML) == "" {
		return nil, fmt.Errorf("%w: signed_xml is empty", ErrBadRequest)
	}
	s.log.Info().Int("xml_len", len(signedXML)).Msg("eds login attempt")

	if !s.verifier.Verify(ctx, signedXML) {
		s.log.Warn().Msg("eds signature verification failed")
		return nil, ErrVerificationFailed
	}

	iin, ok := s.extractor.ExtractIdentity(ctx, signedXML)
	if !ok || iin == "" {
		s.log.Warn().Msg("could not extract IIN from signed document")
		return nil, ErrIdentityMissing
	}

	user, err := s.users.GetByIIN(ctx, iin)
	switch {
	case err == nil:
		return s.decide(user)
	case errors.Is(err, repositories.ErrNotFound):
		return s.createPending(ctx, iin)
	default:
		s.log.Error().Err(err).Msg("user lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

func (s *edsAuthService) createPending(ctx context.Context, iin string) (*LoginResult, error) {
	user, err := s.users.CreatePending(ctx, iin)
	if err == nil {
		s.log.Info().Int("user_id", user.ID).Msg("created pending user")
		return &LoginResult{User: user, Status: models.LoginRegistrationRequired}, nil
	}
	if !errors.Is(err, repositories.ErrDuplicate) {
		s.log.Error().Err(err).Msg("error creating pending user")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// concurrent first login for the same IIN won the insert; use its row
	s.log.Info().Msg("pending user created concurrently, re-reading")
	user, err = s.users.GetByIIN(ctx, iin)
	if err != nil {
		s.log.Error().Err(err).Msg("re-read after duplicate insert failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.decide(user)
}

func (s *edsAuthService) decide(user *models.User) (*LoginResult, error) {
	switch user.Status {
	case models.StatusPending:
		return &LoginResult{User: user, Status: models.LoginRegistrationRequired}, nil
	case models.StatusActive:
		return &LoginResult{User: user, Status: models.LoginAuthenticated}, nil
	case models.StatusInactive:
		s.log.Warn().Int("user_id", user.ID).Msg("inactive user tried to log in")
		return nil, ErrAccountInactive
	default:
		// unknown status in storage: fail closed
		s.log.Error().Int("user_id", user.ID).Str("status", string(user.Status)).Msg("unexpected user status")
		return nil, ErrAccountInactive
	}
}

func (s *edsAuthService) Login(ctx context.Context, signedXML string) (*models.EDSLoginResponse, error) {
	res, err := s.Authenticate(ctx, signedXML)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(res.User.IIN, 0)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Int("user_id", res.User.ID).
		Str("status", string(res.Status)).
		Msg("eds login succeeded")
	return &models.EDSLoginResponse{
		AccessToken: token,
		TokenType:   models.TokenTypeBearer,
		IsNewUser:   res.IsNewUser(),
		Role:        res.User.Role,
	}, nil
}
