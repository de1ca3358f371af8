package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"akimat/internal/models"
	"akimat/internal/repositories"
)

/*
fakeUserRepo is an in-memory repositories.UserRepository with the same
uniqueness rules as the users table (iin, email).
*/
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]*models.User

	getErr    error
	createErr error
	updateErr error

	createCalls int
	// beforeCreate runs (unlocked) at the start of CreatePending.
	beforeCreate func()
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[int]*models.User{}}
}

func (f *fakeUserRepo) add(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if u.ID == 0 {
		u.ID = f.nextID
	}
	if u.Role == "" {
		u.Role = models.RoleEmployee
	}
	cp := u
	f.byID[u.ID] = &cp
	return &cp
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeUserRepo) find(pred func(u *models.User) bool) *models.User {
	for _, u := range f.byID {
		if pred(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func notFound(op string) error { return fmt.Errorf("%s: %w", op, repositories.ErrNotFound) }

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u := f.find(func(u *models.User) bool { return u.ID == id }); u != nil {
		return u, nil
	}
	return nil, notFound("get by id")
}

func (f *fakeUserRepo) GetByIIN(ctx context.Context, iin string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u := f.find(func(u *models.User) bool { return u.IIN != "" && u.IIN == iin }); u != nil {
		return u, nil
	}
	return nil, notFound("get by iin")
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if u := f.find(func(u *models.User) bool { return u.Email != "" && u.Email == email }); u != nil {
		return u, nil
	}
	return nil, notFound("get by email")
}

func (f *fakeUserRepo) CreatePending(ctx context.Context, iin string) (*models.User, error) {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.find(func(u *models.User) bool { return u.IIN == iin }) != nil {
		return nil, fmt.Errorf("create pending user: %w (users_iin_key)", repositories.ErrDuplicate)
	}
	f.nextID++
	now := time.Now()
	u := &models.User{
		ID: f.nextID, IIN: iin, Status: models.StatusPending, Role: models.RoleEmployee,
		CreatedAt: now, UpdatedAt: now,
	}
	f.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := f.checkUnique(user); err != nil {
		return err
	}
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) checkUnique(user *models.User) error {
	dup := f.find(func(u *models.User) bool {
		if u.ID == user.ID {
			return false
		}
		return (user.IIN != "" && u.IIN == user.IIN) || (user.Email != "" && u.Email == user.Email)
	})
	if dup != nil {
		return fmt.Errorf("write user: %w", repositories.ErrDuplicate)
	}
	return nil
}

func (f *fakeUserRepo) CompleteRegistration(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.byID[user.ID]
	if !ok || cur.Status != models.StatusPending {
		return notFound("complete registration")
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := f.checkUnique(user); err != nil {
		return err
	}
	cur.Email = user.Email
	cur.PhoneNumber = user.PhoneNumber
	cur.FullName = user.FullName
	cur.Organization = user.Organization
	cur.Position = user.Position
	cur.Status = models.StatusActive
	*user = *cur
	return nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.byID[user.ID]
	if !ok {
		return notFound("update profile")
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := f.checkUnique(user); err != nil {
		return err
	}
	cur.Email = user.Email
	cur.PasswordHash = user.PasswordHash
	cur.FullName = user.FullName
	cur.PhoneNumber = user.PhoneNumber
	cur.Organization = user.Organization
	cur.Position = user.Position
	*user = *cur
	return nil
}

func (f *fakeUserRepo) SetIIN(ctx context.Context, id int, iin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.byID[id]
	if !ok || cur.IIN != "" {
		return notFound("set iin")
	}
	cur.IIN = iin
	return nil
}

func (f *fakeUserRepo) SetStatus(ctx context.Context, id int, status models.UserStatus) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	cur, ok := f.byID[id]
	if !ok {
		return nil, notFound("set status")
	}
	cur.Status = status
	cp := *cur
	return &cp, nil
}

func (f *fakeUserRepo) SetRole(ctx context.Context, id int, role models.UserRole) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	cur, ok := f.byID[id]
	if !ok {
		return nil, notFound("set role")
	}
	cur.Role = role
	cp := *cur
	return &cp, nil
}

func (f *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var res []*models.User
	for id := 1; id <= f.nextID; id++ {
		if u, ok := f.byID[id]; ok {
			cp := *u
			res = append(res, &cp)
		}
	}
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}

func (f *fakeUserRepo) Count(ctx context.Context) (int, error) {
	return f.count(), nil
}

/*
fakeNCANode implements SignatureVerifier and IdentityExtractor.
*/
type fakeNCANode struct {
	mu          sync.Mutex
	valid       bool
	iin         string
	verifyCalls int
	extractHits int
}

func (f *fakeNCANode) Verify(ctx context.Context, signedXML string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	return f.valid
}

func (f *fakeNCANode) ExtractIdentity(ctx context.Context, signedXML string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractHits++
	if f.iin == "" {
		return "", false
	}
	return f.iin, true
}

/*
Notification capture.
*/
type fakeEmail struct {
	mu      sync.Mutex
	welcome []string
	err     error
}

func (f *fakeEmail) SendWelcomeEmail(email, fullName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcome = append(f.welcome, email)
	return f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) NotifyAdmins(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return f.err
}

const testSecret = "test-secret-key"

func newTestTokens(users userByIIN) *tokenService {
	ts, err := NewTokenService(TokenConfig{Secret: testSecret, Algorithm: "HS256", TTL: 30 * time.Minute}, users)
	if err != nil {
		panic(err)
	}
	return ts.(*tokenService)
}
