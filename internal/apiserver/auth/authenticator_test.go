package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-access/internal/shared/model"
	"campus-access/internal/shared/storage"
)

func TestLogin(t *testing.T) {
	a, _ := newTestAuthenticator(t, testConfig())
	ctx := context.Background()

	tests := []struct {
		name       string
		identifier string
		secret     string
		wantID     string
		wantErr    error
	}{
		{"admin", "admin@ncat.edu", "admin123", "admin-1", nil},
		{"case-insensitive identifier", "ADMIN@NCAT.EDU", "admin123", "admin-1", nil},
		{"unapproved professor may log in", "prof_demo@ncat.edu", "prof123", "prof-pend-1", nil},
		{"wrong password", "admin@ncat.edu", "ADMIN123", "", ErrInvalidCredentials},
		{"unknown user", "nobody@ncat.edu", "x", "", ErrInvalidCredentials},
		{"empty", "", "", "", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := a.Login(ctx, tt.identifier, tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, u.ID)
		})
	}
}

func TestLoginRequireApproved(t *testing.T) {
	cfg := testConfig()
	cfg.RequireApproved = true
	a, _ := newTestAuthenticator(t, cfg)
	ctx := context.Background()

	_, err := a.Login(ctx, "prof_demo@ncat.edu", "prof123")
	assert.ErrorIs(t, err, ErrNotApproved)

	_, err = a.Login(ctx, "admin@ncat.edu", "admin123")
	assert.NoError(t, err)
}

func TestSignup(t *testing.T) {
	a, store := newTestAuthenticator(t, testConfig())
	ctx := context.Background()

	u, err := a.Signup(ctx, SignupInput{Name: "Grace Hopper", Email: "ghopper@NCAT.edu", Password: "navy"})
	require.NoError(t, err)
	assert.Contains(t, u.ID, "usr-")
	assert.Equal(t, model.RoleProfessor, u.Role)
	assert.False(t, u.Approved)
	assert.True(t, u.CanRequest)
	assert.Empty(t, u.Building)

	stored, err := store.GetUserByIdentifier(ctx, "ghopper@ncat.edu")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, CheckPassword("navy", stored.PasswordHash))

	_, err = a.Signup(ctx, SignupInput{Name: "Dup", Email: "GHOPPER@ncat.edu", Password: "x"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestSignupValidation(t *testing.T) {
	a, _ := newTestAuthenticator(t, testConfig())
	ctx := context.Background()

	tests := []struct {
		name  string
		in    SignupInput
		field string
	}{
		{"missing name", SignupInput{Email: "a@ncat.edu", Password: "x"}, "name"},
		{"missing email", SignupInput{Name: "A", Password: "x"}, "email"},
		{"wrong domain", SignupInput{Name: "A", Email: "a@gmail.com", Password: "x"}, "email"},
		{"student domain", SignupInput{Name: "A", Email: "a@aggies.ncat.edu.com", Password: "x"}, "email"},
		{"missing password", SignupInput{Name: "A", Email: "a@ncat.edu"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Signup(ctx, tt.in)
			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestCompleteProfile(t *testing.T) {
	a, _ := newTestAuthenticator(t, testConfig())
	ctx := context.Background()

	u, err := a.CompleteProfile(ctx, "prof-pend-1", ProfileInput{Building: "martin hall", Role: "Researcher", Office: "215"})
	require.NoError(t, err)
	assert.Equal(t, "Martin", u.Building)
	assert.Equal(t, model.RoleResearcher, u.Role)
	assert.Equal(t, "20022215", u.FacultyID)

	u, err = a.CompleteProfile(ctx, "prof-pend-1", ProfileInput{Building: "Graham"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleResearcher, u.Role)
	assert.Equal(t, "20022215", u.FacultyID)
}

func TestCompleteProfileErrors(t *testing.T) {
	a, _ := newTestAuthenticator(t, testConfig())
	ctx := context.Background()

	_, err := a.CompleteProfile(ctx, "nobody", ProfileInput{Building: "McNair"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tests := []struct {
		name   string
		userID string
		in     ProfileInput
		field  string
	}{
		{"unknown building", "prof-pend-1", ProfileInput{Building: "Library"}, "building"},
		{"self promotion to admin", "prof-pend-1", ProfileInput{Building: "McNair", Role: "admin"}, "role"},
		{"bad office", "prof-pend-1", ProfileInput{Building: "McNair", Office: "12"}, "office"},
		{"admin cannot use profile step", "admin-1", ProfileInput{Building: "McNair"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.CompleteProfile(ctx, tt.userID, tt.in)
			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestTrimHall(t *testing.T) {
	assert.Equal(t, "McNair", trimHall("McNair Hall"))
	assert.Equal(t, "Graham", trimHall(" Graham "))
	assert.Equal(t, "Hall", trimHall("Hall"))
}
