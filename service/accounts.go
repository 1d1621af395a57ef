package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"pairchat/models"
	"pairchat/utils"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// Accounts is the credential collaborator: signup, authenticate, profile.
type Accounts struct {
	Users  UserStore
	Images ImageStore
	Now    func() time.Time
	NewID  func() string
}

type SignupInput struct {
	FullName string
	Username string
	Email    string
	Password string
}

func (a *Accounts) Signup(ctx context.Context, in SignupInput) (models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	fields := map[string]string{}
	if in.FullName == "" {
		fields["fullName"] = "required"
	}
	if !usernamePattern.MatchString(in.Username) {
		fields["username"] = "must be 3-20 lowercase letters, numbers or underscores"
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		fields["email"] = "invalid email"
	}
	if len(in.Password) < 6 {
		fields["password"] = "must be at least 6 characters"
	}
	if len(fields) > 0 {
		return models.User{}, models.NewValidationError(fields)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := nowFrom(a.Now)
	u := models.User{
		ID:           idFrom(a.NewID),
		FullName:     in.FullName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Users.Create(ctx, u); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return models.User{}, models.NewConflictError("email or username already in use")
		}
		return models.User{}, err
	}
	return u, nil
}

// Authenticate resolves credentials to a user.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	u, err := a.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, models.ErrNotFound) {
		return models.User{}, fmt.Errorf("invalid credentials: %w", models.ErrUnauthorized)
	}
	if err != nil {
		return models.User{}, err
	}
	if !utils.CheckPassword(u.PasswordHash, password) {
		return models.User{}, fmt.Errorf("invalid credentials: %w", models.ErrUnauthorized)
	}
	return u, nil
}

func (a *Accounts) Get(ctx context.Context, userID string) (models.User, error) {
	return a.Users.GetByID(ctx, userID)
}

func (a *Accounts) UpdateProfilePic(ctx context.Context, userID string, image []byte) (models.User, error) {
	if len(image) == 0 {
		return models.User{}, models.NewValidationError(map[string]string{"profilePic": "required"})
	}
	url, err := storeImage(ctx, a.Images, a.NewID, image)
	if err != nil {
		return models.User{}, err
	}
	if err := a.Users.UpdateProfilePic(ctx, userID, url, nowFrom(a.Now)); err != nil {
		return models.User{}, err
	}
	return a.Users.GetByID(ctx, userID)
}

// ChangePassword replaces userID's password after verifying the current one.
func (a *Accounts) ChangePassword(ctx context.Context, userID, current, next string) error {
	fields := map[string]string{}
	if current == "" {
		fields["currentPassword"] = "required"
	}
	switch {
	case next == "":
		fields["newPassword"] = "required"
	case len(next) < 6:
		fields["newPassword"] = "must be at least 6 characters"
	case next == current:
		fields["newPassword"] = "must differ from the current password"
	}
	if len(fields) > 0 {
		return models.NewValidationError(fields)
	}

	u, err := a.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(u.PasswordHash, current) {
		return fmt.Errorf("current password is incorrect: %w", models.ErrUnauthorized)
	}

	hash, err := utils.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return a.Users.UpdatePassword(ctx, userID, hash, nowFrom(a.Now))
}
