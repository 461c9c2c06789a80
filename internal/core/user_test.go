package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marcusj/safetrack/internal/model"
)

// ---------- Create ----------

func TestUserService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db, bcrypt.MinCost)
	ctx := context.Background()

	existsRow := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*bool)) = false
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"anna@site.test"}).Return(existsRow)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execTag("INSERT", 1), nil)

	user, err := svc.Create(ctx, "  Anna@Site.Test ", "hunter22", "Anna Berg", "")
	require.NoError(t, err)
	assert.Equal(t, "anna@site.test", user.Email)
	assert.Equal(t, model.RoleWorker, user.Role)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")))
	db.AssertExpectations(t)
}

func TestUserService_Create_DuplicateEmail(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db, bcrypt.MinCost)
	ctx := context.Background()

	existsRow := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*bool)) = true
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(existsRow)

	_, err := svc.Create(ctx, "anna@site.test", "hunter22", "Anna Berg", model.RoleManager)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	db.AssertExpectations(t)
}

// ---------- GetByID ----------

func TestUserService_GetByID_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db, bcrypt.MinCost)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"usr-missing"}).Return(row)

	_, err := svc.GetByID(ctx, "usr-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------- Authenticate ----------

func userRow(t *testing.T, password string) *mockRow {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "usr-1"
		*(dest[1].(*string)) = "anna@site.test"
		*(dest[2].(*string)) = string(hash)
		*(dest[3].(*string)) = "Anna Berg"
		*(dest[4].(*string)) = model.RoleWorker
		*(dest[5].(*time.Time)) = time.Now()
		return nil
	}}
}

func TestUserService_Authenticate_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db, bcrypt.MinCost)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"anna@site.test"}).
		Return(userRow(t, "hunter22"))

	user, err := svc.Authenticate(ctx, "anna@site.test", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", user.ID)
}

func TestUserService_Authenticate_WrongPassword(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db, bcrypt.MinCost)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(userRow(t, "hunter22"))

	_, err := svc.Authenticate(ctx, "anna@site.test", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestUserService_Authenticate_UnknownEmail(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db, bcrypt.MinCost)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := svc.Authenticate(ctx, "ghost@site.test", "hunter22")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestUserService_Authenticate_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewUserService(db, bcrypt.MinCost)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return errors.New("connection refused")
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := svc.Authenticate(ctx, "anna@site.test", "hunter22")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "get user")
}
