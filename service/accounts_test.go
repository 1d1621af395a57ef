package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/models"
	"pairchat/service"
)

func TestSignup_ValidatesFields(t *testing.T) {
	h := newHarness(t)

	_, err := h.accounts.Signup(context.Background(), service.SignupInput{
		Username: "A",
		Email:    "not-an-email",
		Password: "123",
	})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "fullName")
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
}

func TestSignup_NormalizesAndRejectsDuplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.accounts.Signup(ctx, service.SignupInput{
		FullName: " Ann Lee ",
		Username: "Ann_Lee",
		Email:    "Ann@Example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "ann_lee", u.Username)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, "Ann Lee", u.FullName)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	_, err = h.accounts.Signup(ctx, service.SignupInput{
		FullName: "Other",
		Username: "other",
		Email:    "ann@example.com",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.user(t, "ann")

	u, err := h.accounts.Authenticate(ctx, " ANN@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = h.accounts.Authenticate(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = h.accounts.Authenticate(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestUpdateProfilePic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.user(t, "ann")

	u, err := h.accounts.UpdateProfilePic(ctx, id, pngBytes)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.ProfilePic, "https://cdn.test/"))

	_, err = h.accounts.UpdateProfilePic(ctx, id, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = h.accounts.UpdateProfilePic(ctx, id, make([]byte, 6*1024*1024))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.user(t, "ann")

	cases := []struct {
		name, current, next, field string
	}{
		{"missing current", "", "newpass1", "currentPassword"},
		{"missing new", "secret123", "", "newPassword"},
		{"too short", "secret123", "abc", "newPassword"},
		{"unchanged", "secret123", "secret123", "newPassword"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.accounts.ChangePassword(ctx, id, tc.current, tc.next)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}

	err := h.accounts.ChangePassword(ctx, id, "wrong-one", "newpass1")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	require.NoError(t, h.accounts.ChangePassword(ctx, id, "secret123", "newpass1"))

	_, err = h.accounts.Authenticate(ctx, "ann@example.com", "secret123")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = h.accounts.Authenticate(ctx, "ann@example.com", "newpass1")
	assert.NoError(t, err)

	err = h.accounts.ChangePassword(ctx, "ghost", "secret123", "newpass1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
