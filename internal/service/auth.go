package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/streamhub/internal/domain"
	"github.com/Skotchmaster/streamhub/internal/events"
	"github.com/Skotchmaster/streamhub/internal/hash"
	"github.com/Skotchmaster/streamhub/internal/logging"
	"github.com/Skotchmaster/streamhub/internal/media"
	"github.com/Skotchmaster/streamhub/internal/models"
	"github.com/Skotchmaster/streamhub/internal/repo"
	"github.com/Skotchmaster/streamhub/internal/tokens"
)

type UserStore interface {
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	Create(ctx context.Context, u *models.User) error
	Save(ctx context.Context, u *models.User, opts repo.SaveOptions) error
	SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error
	SwapRefreshToken(ctx context.Context, id uuid.UUID, old, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type MediaUploader interface {
	Upload(ctx context.Context, kind string, f *media.File) (string, error)
}

type AuthService struct {
	Users  UserStore
	Tokens *tokens.Service
	Events Publisher
	Media  MediaUploader

	Now func() time.Time
}

func NewAuthService(users UserStore, tks *tokens.Service, pub Publisher, up MediaUploader) *AuthService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &AuthService{Users: users, Tokens: tks, Events: pub, Media: up, Now: time.Now}
}

type RegisterInput struct {
	FullName   string
	Username   string
	Email      string
	Password   string
	Avatar     *media.File
	CoverImage *media.File
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         *models.PublicUser
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	for _, f := range []string{in.FullName, in.Username, in.Email, in.Password} {
		if strings.TrimSpace(f) == "" {
			l.Warn("register_failed", "status", 400, "reason", "blank field")
			return nil, fmt.Errorf("all fields are required: %w", domain.ErrValidation)
		}
	}
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.TrimSpace(in.Email)

	existing, err := s.Users.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil && existing != nil:
		l.Warn("register_failed", "status", 409, "reason", "user already exists")
		return nil, fmt.Errorf("register %q: %w", username, domain.ErrConflict)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		l.Error("register_failed", "status", 500, "error", err)
		return nil, err
	}

	if in.Avatar == nil {
		l.Warn("register_failed", "status", 400, "reason", "avatar missing")
		return nil, fmt.Errorf("avatar image is required: %w", domain.ErrValidation)
	}
	if s.Media == nil {
		return nil, fmt.Errorf("media storage is not configured: %w", domain.ErrUpload)
	}
	avatarURL, err := s.Media.Upload(ctx, "avatars", in.Avatar)
	if err != nil {
		l.Error("register_failed", "status", 400, "reason", "avatar upload", "error", err)
		if !errors.Is(err, domain.ErrUpload) {
			err = fmt.Errorf("%w: %v", domain.ErrUpload, err)
		}
		return nil, err
	}

	var coverURL string
	if in.CoverImage != nil {
		coverURL, err = s.Media.Upload(ctx, "covers", in.CoverImage)
		if err != nil {
			// the cover is optional, a failed upload leaves it empty
			l.Warn("cover_upload_failed", "error", err)
			coverURL = ""
		}
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: pwHash,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		l.Error("register_failed", "error", err)
		return nil, err
	}

	l.Info("user_registered", "user_id", user.ID)
	s.publish(ctx, events.UserRegistered, user)
	return user.Public(), nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.TrimSpace(in.Email)
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if username == "" && email == "" {
		return nil, fmt.Errorf("username or email is required: %w", domain.ErrValidation)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("password is required: %w", domain.ErrValidation)
	}

	user, err := s.Users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Warn("login_failed", "status", 404, "reason", "user does not exist")
		} else {
			l.Error("login_failed", "status", 500, "error", err)
		}
		return nil, err
	}

	if !s.Users.VerifyPassword(user, in.Password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid password")
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}

	res, err := s.issuePair(user)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}

	if err := s.Users.SetRefreshToken(ctx, user.ID, res.RefreshToken); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, asPersistence("store refresh token", err)
	}

	l.Info("user_logged_in", "user_id", user.ID)
	s.publish(ctx, events.UserLoggedIn, user)
	return res, nil
}

// Refresh rotates the refresh token. Only the caller whose token is still the
// stored one gets a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		return nil, fmt.Errorf("refresh: %w", domain.ErrMissingToken)
	}

	userID, err := s.Tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "error", err)
		return nil, err
	}

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "user does not exist", "user_id", userID)
			return nil, fmt.Errorf("refresh: unknown user: %w", domain.ErrInvalidToken)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	if user.CurrentRefreshToken() != refreshToken {
		l.Warn("refresh_failed", "status", 401, "reason", "refresh token is expired or used", "user_id", userID)
		return nil, fmt.Errorf("refresh: %w", domain.ErrTokenMismatch)
	}

	res, err := s.issuePair(user)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, err
	}

	swapped, err := s.Users.SwapRefreshToken(ctx, user.ID, refreshToken, res.RefreshToken)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, asPersistence("rotate refresh token", err)
	}
	if !swapped {
		l.Warn("refresh_failed", "status", 401, "reason", "concurrent rotation", "user_id", userID)
		return nil, fmt.Errorf("refresh: %w", domain.ErrTokenMismatch)
	}

	l.Info("token_refreshed", "user_id", user.ID)
	return res, nil
}

// LogOut empties the refresh-token slot. Logging out twice is not an error.
func (s *AuthService) LogOut(ctx context.Context, userID uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout", "user_id", userID)

	if err := s.Users.ClearRefreshToken(ctx, userID); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return asPersistence("clear refresh token", err)
	}

	l.Info("user_logged_out")
	s.publish(ctx, events.UserLoggedOut, &models.User{ID: userID})
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "user_id", userID)

	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("old and new password are required: %w", domain.ErrValidation)
	}

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		l.Warn("change_password_failed", "error", err)
		return err
	}
	if !s.Users.VerifyPassword(user, oldPassword) {
		l.Warn("change_password_failed", "status", 401, "reason", "invalid old password")
		return fmt.Errorf("change password: %w", domain.ErrInvalidCredentials)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		l.Error("change_password_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Users.UpdatePasswordHash(ctx, user.ID, pwHash); err != nil {
		l.Error("change_password_failed", "error", err)
		return err
	}

	l.Info("password_changed")
	s.publish(ctx, events.PasswordChanged, user)
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.PublicUser, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

func (s *AuthService) issuePair(user *models.User) (*LoginResult, error) {
	accessToken, accessExp, err := s.Tokens.IssueAccessToken(tokens.AccessIdentity{
		UserID:   user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
	})
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExp, err := s.Tokens.IssueRefreshToken(user.ID.String())
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		User:         user.Public(),
	}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType string, user *models.User) {
	if s.Events == nil {
		return
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ev := events.UserEvent{
		Type:       eventType,
		UserID:     user.ID.String(),
		Username:   user.Username,
		OccurredAt: now().UTC(),
	}
	if err := s.Events.PublishEvent(ctx, events.TopicUserEvents, ev.UserID, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_failed", "event", eventType, "error", err)
	}
}

func asPersistence(op string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistence, err)
}
