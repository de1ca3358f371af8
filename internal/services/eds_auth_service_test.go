package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akimat/internal/models"
	"akimat/internal/repositories"
)

const signedDoc = `<root><ds:Signature>...</ds:Signature></root>`

func newEDS(nca *fakeNCANode, repo UserReconciler) (EDSAuthService, *tokenService) {
	ts := newTestTokens(newFakeUserRepo())
	return NewEDSAuthService(nca, nca, repo, ts), ts
}

func TestAuthenticate_FirstLogin_CreatesPendingUser(t *testing.T) {
	repo := newFakeUserRepo()
	nca := &fakeNCANode{valid: true, iin: "123456789012"}
	svc, _ := newEDS(nca, repo)

	res, err := svc.Authenticate(context.Background(), signedDoc)
	require.NoError(t, err)
	assert.Equal(t, models.LoginRegistrationRequired, res.Status)
	assert.True(t, res.IsNewUser())
	assert.Equal(t, "123456789012", res.User.IIN)
	assert.Equal(t, models.StatusPending, res.User.Status)
	assert.Empty(t, res.User.PasswordHash)
	assert.Equal(t, 1, repo.count())
}

func TestAuthenticate_ExistingPending_NoSecondUser(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(models.User{IIN: "123456789012", Status: models.StatusPending})
	svc, _ := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	res, err := svc.Authenticate(context.Background(), signedDoc)
	require.NoError(t, err)
	assert.Equal(t, models.LoginRegistrationRequired, res.Status)
	assert.Equal(t, 0, repo.createCalls)
	assert.Equal(t, 1, repo.count())
}

func TestAuthenticate_Active_Authenticated(t *testing.T) {
	repo := newFakeUserRepo()
	u := repo.add(models.User{IIN: "123456789012", Status: models.StatusActive, Role: models.RoleSupervisor})
	svc, _ := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	res, err := svc.Authenticate(context.Background(), signedDoc)
	require.NoError(t, err)
	assert.Equal(t, models.LoginAuthenticated, res.Status)
	assert.False(t, res.IsNewUser())
	assert.Equal(t, u.ID, res.User.ID)
}

func TestAuthenticate_Inactive_RejectedLikeBadSignature(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(models.User{IIN: "123456789012", Status: models.StatusInactive})
	svc, _ := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	_, err := svc.Authenticate(context.Background(), signedDoc)
	require.ErrorIs(t, err, ErrAccountInactive)
	assert.True(t, IsAuthFailure(err))
}

func TestAuthenticate_InvalidSignature_NoLookupNoCreate(t *testing.T) {
	repo := newFakeUserRepo()
	repo.getErr = errors.New("must not be called")
	nca := &fakeNCANode{valid: false, iin: "123456789012"}
	svc, _ := newEDS(nca, repo)

	_, err := svc.Authenticate(context.Background(), signedDoc)
	require.ErrorIs(t, err, ErrVerificationFailed)
	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, 0, nca.extractHits)
	assert.Equal(t, 0, repo.createCalls)
	assert.Equal(t, 0, repo.count())
}

func TestAuthenticate_NoIdentity(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newEDS(&fakeNCANode{valid: true}, repo)

	_, err := svc.Authenticate(context.Background(), signedDoc)
	require.ErrorIs(t, err, ErrIdentityMissing)
	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, 0, repo.count())
}

func TestAuthenticate_BlankDocument_NoExternalCall(t *testing.T) {
	nca := &fakeNCANode{valid: true, iin: "123456789012"}
	svc, _ := newEDS(nca, newFakeUserRepo())

	_, err := svc.Authenticate(context.Background(), "   \n")
	require.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, 0, nca.verifyCalls)
}

func TestAuthenticate_LookupFault_Persistence(t *testing.T) {
	repo := newFakeUserRepo()
	repo.getErr = errors.New("connection refused")
	svc, _ := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	_, err := svc.Authenticate(context.Background(), signedDoc)
	require.ErrorIs(t, err, ErrPersistence)
	assert.False(t, IsAuthFailure(err))
}

func TestAuthenticate_CreateFault_Persistence(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New("disk full")
	svc, _ := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	_, err := svc.Authenticate(context.Background(), signedDoc)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 0, repo.count())
}

// duplicateThenMissing reports a unique violation but the row never shows up.
type duplicateThenMissing struct{ lookups int }

func (d *duplicateThenMissing) GetByIIN(ctx context.Context, iin string) (*models.User, error) {
	d.lookups++
	return nil, fmt.Errorf("get user by iin: %w", repositories.ErrNotFound)
}

func (d *duplicateThenMissing) CreatePending(ctx context.Context, iin string) (*models.User, error) {
	return nil, fmt.Errorf("create pending user: %w", repositories.ErrDuplicate)
}

func TestAuthenticate_DuplicateWithoutRow_Persistence(t *testing.T) {
	repo := &duplicateThenMissing{}
	svc, _ := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	_, err := svc.Authenticate(context.Background(), signedDoc)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 2, repo.lookups, "exactly one re-query after the duplicate")
}

func TestAuthenticate_ConcurrentFirstLogin_SingleUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	const n = 2
	// both requests miss the lookup before either inserts
	var arrived sync.WaitGroup
	arrived.Add(n)
	repo.beforeCreate = func() {
		arrived.Done()
		arrived.Wait()
	}

	var wg sync.WaitGroup
	results := make([]*LoginResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Authenticate(context.Background(), signedDoc)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, models.LoginRegistrationRequired, results[i].Status)
	}
	assert.Equal(t, 1, repo.count())
	assert.Equal(t, results[0].User.ID, results[1].User.ID)
}

func TestLogin_TokenCarriesIIN(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(models.User{IIN: "123456789012", Status: models.StatusActive, Role: models.RoleAdministrator})
	svc, ts := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	resp, err := svc.Login(context.Background(), signedDoc)
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.False(t, resp.IsNewUser)
	assert.Equal(t, models.RoleAdministrator, resp.Role)

	claims, err := ts.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", claims.IIN)
}

func TestLogin_NewUser_Flagged(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newEDS(&fakeNCANode{valid: true, iin: "123456789012"}, repo)

	resp, err := svc.Login(context.Background(), signedDoc)
	require.NoError(t, err)
	assert.True(t, resp.IsNewUser)
	assert.Equal(t, models.RoleEmployee, resp.Role)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogin_TokenFault_NoToken(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add(models.User{IIN: "123456789012", Status: models.StatusActive})
	ts := newTestTokens(repo)
	ts.sign = func(*jwt.Token, any) (string, error) { return "", errors.New("boom") }
	nca := &fakeNCANode{valid: true, iin: "123456789012"}
	svc := NewEDSAuthService(nca, nca, repo, ts)

	resp, err := svc.Login(context.Background(), signedDoc)
	require.ErrorIs(t, err, ErrTokenIssue)
	assert.Nil(t, resp)
}
