package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"

	"akimat/internal/logger"
	"akimat/internal/models"
	"akimat/internal/repositories"
	"akimat/internal/utils"
)

type UserService interface {
	CompleteRegistration(ctx context.Context, user *models.User, data models.RegistrationData) (*models.RegistrationResponse, error)
	RegisterWithEmail(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error)
	LoginWithEmail(ctx context.Context, email, password string) (*models.TokenResponse, error)

	GetUser(ctx context.Context, id int) (*models.User, error)
	FindByIIN(ctx context.Context, iin string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User, upd models.ProfileUpdate) (*models.User, error)

	CreateUser(ctx context.Context, actor *models.User, req models.AdminUserCreate) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error)
	SetStatus(ctx context.Context, actor *models.User, id int, status models.UserStatus) (*models.User, error)
	SetRole(ctx context.Context, actor *models.User, id int, role models.UserRole) (*models.User, error)
}

type userService struct {
	repo     repositories.UserRepository
	auth     AuthService
	tokens   TokenService
	email    EmailService
	notifier AdminNotifier
	log      zerolog.Logger
}

func NewUserService(
	repo repositories.UserRepository,
	auth AuthService,
	tokens TokenService,
	email EmailService,
	notifier AdminNotifier,
) UserService {
	return &userService{
		repo:     repo,
		auth:     auth,
		tokens:   tokens,
		email:    email,
		notifier: notifier,
		log:      logger.Component("users"),
	}
}

// ---------- registration ----------

// CompleteRegistration fills the profile of a pending EDS user and activates it.
func (s *userService) CompleteRegistration(ctx context.Context, user *models.User, data models.RegistrationData) (*models.RegistrationResponse, error) {
	if user == nil || !user.IsPending() {
		return nil, ErrNotPending
	}
	if err := s.ensureEmailFree(ctx, data.Email, user.ID); err != nil {
		return nil, err
	}

	upd := *user
	upd.Email = data.Email
	upd.PhoneNumber = strings.TrimSpace(data.PhoneNumber)
	upd.FullName = strings.TrimSpace(data.FullName)
	upd.Organization = strings.TrimSpace(data.Organization)
	upd.Position = strings.TrimSpace(data.Position)

	if err := s.repo.CompleteRegistration(ctx, &upd); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			// статус уже сменился параллельным запросом
			return nil, ErrNotPending
		case errors.Is(err, repositories.ErrDuplicate):
			return nil, ErrEmailTaken
		}
		s.log.Error().Err(err).Int("user_id", user.ID).Msg("complete registration failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	token, err := s.tokens.Issue(upd.IIN, 0)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("user_id", upd.ID).Msg("registration completed")

	s.sendWelcome(&upd)
	s.notifyAdmins(fmt.Sprintf("Новый пользователь завершил регистрацию: <b>%s</b> (%s, %s)",
		html.EscapeString(displayName(&upd)),
		html.EscapeString(upd.Organization),
		html.EscapeString(upd.Position)))

	return &models.RegistrationResponse{
		Message:     "Registration completed successfully",
		AccessToken: token,
		TokenType:   models.TokenTypeBearer,
		Role:        upd.Role,
	}, nil
}

// RegisterWithEmail creates an active user with a password and a generated pseudo-IIN.
func (s *userService) RegisterWithEmail(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error) {
	if strings.TrimSpace(req.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrBadRequest)
	}
	if err := s.ensureEmailFree(ctx, req.Email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		IIN:          utils.NewPseudoIIN(),
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Organization: strings.TrimSpace(req.Organization),
		Position:     strings.TrimSpace(req.Position),
		Status:       models.StatusActive,
		Role:         models.RoleEmployee,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		s.log.Error().Err(err).Msg("create email user failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.log.Info().Int("user_id", user.ID).Msg("email user registered")

	token, err := s.tokens.Issue(user.IIN, 0)
	if err != nil {
		return nil, err
	}

	s.sendWelcome(user)
	s.notifyAdmins(fmt.Sprintf("Новая регистрация по email: <b>%s</b>", html.EscapeString(displayName(user))))

	return &models.TokenResponse{AccessToken: token, TokenType: models.TokenTypeBearer, Role: user.Role}, nil
}

func (s *userService) LoginWithEmail(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.log.Error().Err(err).Msg("email login lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !user.HasPassword() || !s.auth.CheckPassword(user.PasswordHash, password) {
		s.log.Warn().Int("user_id", user.ID).Msg("email login: bad credentials")
		return nil, ErrInvalidCredentials
	}
	if user.IsInactive() {
		return nil, ErrAccountInactive
	}

	// токен адресует пользователя по IIN, поэтому без него войти нельзя
	if strings.TrimSpace(user.IIN) == "" {
		if err := s.assignPseudoIIN(ctx, user); err != nil {
			return nil, err
		}
	}

	token, err := s.tokens.Issue(user.IIN, 0)
	if err != nil {
		return nil, err
	}
	return &models.TokenResponse{AccessToken: token, TokenType: models.TokenTypeBearer, Role: user.Role}, nil
}

func (s *userService) assignPseudoIIN(ctx context.Context, user *models.User) error {
	iin := utils.NewPseudoIIN()
	err := s.repo.SetIIN(ctx, user.ID, iin)
	switch {
	case err == nil:
		user.IIN = iin
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		// iin was filled concurrently; take the stored one
		fresh, gerr := s.repo.GetByID(ctx, user.ID)
		if gerr != nil || fresh.IIN == "" {
			return fmt.Errorf("%w: reload after set iin: %v", ErrPersistence, gerr)
		}
		user.IIN = fresh.IIN
		return nil
	default:
		s.log.Error().Err(err).Int("user_id", user.ID).Msg("assign pseudo iin failed")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

// ---------- profile ----------

func (s *userService) GetUser(ctx context.Context, id int) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return u, nil
}

func (s *userService) FindByIIN(ctx context.Context, iin string) (*models.User, error) {
	u, err := s.repo.GetByIIN(ctx, iin)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return u, nil
}

func (s *userService) UpdateProfile(ctx context.Context, user *models.User, upd models.ProfileUpdate) (*models.User, error) {
	cur := *user
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		if email != strings.ToLower(cur.Email) {
			if err := s.ensureEmailFree(ctx, email, cur.ID); err != nil {
				return nil, err
			}
		}
		cur.Email = email
	}
	if upd.FullName != nil {
		cur.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.PhoneNumber != nil {
		cur.PhoneNumber = strings.TrimSpace(*upd.PhoneNumber)
	}
	if upd.Organization != nil {
		cur.Organization = strings.TrimSpace(*upd.Organization)
	}
	if upd.Position != nil {
		cur.Position = strings.TrimSpace(*upd.Position)
	}
	if upd.Password != nil {
		if strings.TrimSpace(*upd.Password) == "" {
			return nil, fmt.Errorf("%w: password is empty", ErrBadRequest)
		}
		hash, err := s.hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		cur.PasswordHash = hash
	}

	if err := s.repo.UpdateProfile(ctx, &cur); err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			return nil, ErrEmailTaken
		case errors.Is(err, repositories.ErrNotFound):
			return nil, ErrUserNotFound
		}
		s.log.Error().Err(err).Int("user_id", user.ID).Msg("update profile failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &cur, nil
}

// ---------- administration ----------

// CreateUser заводит активную учётную запись с паролем. ИИН у неё
// временный (E...), реальный появится только через вход по ЭЦП.
func (s *userService) CreateUser(ctx context.Context, actor *models.User, req models.AdminUserCreate) (*models.User, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	if err := s.ensureEmailFree(ctx, req.Email, 0); err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		IIN:          utils.NewPseudoIIN(),
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Organization: strings.TrimSpace(req.Organization),
		Position:     strings.TrimSpace(req.Position),
		Status:       models.StatusActive,
		Role:         req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		s.log.Error().Err(err).Int("actor_id", actorID(actor)).Msg("admin create user failed")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.log.Info().Int("actor_id", actorID(actor)).Int("user_id", user.ID).Str("role", string(user.Role)).Msg("user created by admin")

	s.sendWelcome(user)
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if list == nil {
		list = []*models.User{}
	}
	return list, total, nil
}

// SetStatus deactivates or reactivates a user (see AdminStatusTransitions).
func (s *userService) SetStatus(ctx context.Context, actor *models.User, id int, status models.UserStatus) (*models.User, error) {
	if status != models.StatusActive && status != models.StatusInactive {
		return nil, ErrInvalidStatus
	}
	if actor != nil && actor.ID == id {
		return nil, ErrSelfModeration
	}
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Status == status {
		return target, nil
	}
	if !canTransition(target.Status, status, AdminStatusTransitions) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, target.Status, status)
	}

	updated, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.log.Info().Int("actor_id", actorID(actor)).Int("user_id", id).Str("status", string(status)).Msg("user status changed")
	return updated, nil
}

func (s *userService) SetRole(ctx context.Context, actor *models.User, id int, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if actor != nil && actor.ID == id {
		return nil, ErrSelfModeration
	}
	updated, err := s.repo.SetRole(ctx, id, role)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.log.Info().Int("actor_id", actorID(actor)).Int("user_id", id).Str("role", string(role)).Msg("user role changed")
	return updated, nil
}

// ---------- helpers ----------

func (s *userService) hashPassword(password string) (string, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			return "", err
		}
		s.log.Error().Err(err).Msg("password hashing failed")
		return "", err
	}
	return hash, nil
}

// ensureEmailFree: selfID is the caller's own row (0 for a new user).
func (s *userService) ensureEmailFree(ctx context.Context, email string, selfID int) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.ID != selfID {
			return ErrEmailTaken
		}
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

// Notification failures never fail the operation.
func (s *userService) sendWelcome(u *models.User) {
	if s.email == nil || u.Email == "" {
		return
	}
	if err := s.email.SendWelcomeEmail(u.Email, u.FullName); err != nil {
		s.log.Warn().Err(err).Int("user_id", u.ID).Msg("welcome email failed")
	}
}

func (s *userService) notifyAdmins(text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAdmins(text); err != nil {
		s.log.Warn().Err(err).Msg("admin notification failed")
	}
}

func displayName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Email != "" {
		return u.Email
	}
	return fmt.Sprintf("#%d", u.ID)
}

func actorID(u *models.User) int {
	if u == nil {
		return 0
	}
	return u.ID
}
