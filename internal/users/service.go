package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/notify"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	CreateUser(ctx context.Context, u *User, confirmKey string) (int64, error)
	ConfirmEmail(ctx context.Context, email, key string) (bool, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
	UserByToken(ctx context.Context, key string) (*User, error)
	IssueToken(ctx context.Context, userID int64, key string) (string, error)
	DeleteTokens(ctx context.Context, userID int64) error
	IssueResetToken(ctx context.Context, userID int64, key string) error
	UserByResetToken(ctx context.Context, key string, maxAge time.Duration) (*User, error)
	ResetPassword(ctx context.Context, userID int64, key, passwordHash string) (bool, error)
	UpdateUser(ctx context.Context, id int64, p DetailsPatch, passwordHash string) error
	Contacts(ctx context.Context, userID int64) ([]Contact, error)
	CreateContact(ctx context.Context, userID int64, in ContactInput) (int64, error)
	UpdateContact(ctx context.Context, userID int64, p ContactPatch) error
	DeleteContacts(ctx context.Context, userID int64, ids []int64) ([]int64, error)
}

var _ Store = (*Repo)(nil)

// ResetTokenTTL bounds how long a password reset token can be used.
const ResetTokenTTL = 24 * time.Hour

type Publisher interface {
	Publish(ctx context.Context, events ...notify.Event)
}

type Service struct {
	Store    Store
	Events   Publisher
	Log      *zap.Logger
	NewKey   func() string
	validate *validator.Validate
}

func NewService(store Store, events Publisher, log *zap.Logger) *Service {
	return &Service{
		Store:    store,
		Events:   events,
		Log:      log,
		NewKey:   newKey,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func newKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return apperr.Validation("%v", err)
	}
	return nil
}

func passwordError(password, email string) error {
	if p := PasswordProblems(password, email); len(p) > 0 {
		return apperr.Validation("password: %s", strings.Join(p, " "))
	}
	return nil
}

// Register creates an inactive account and emails its confirmation key,
// which is also returned.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.check(in); err != nil {
		return "", err
	}
	if err := passwordError(in.Password, in.Email); err != nil {
		return "", err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if in.Type == "" {
		in.Type = auth.RoleClient
	}

	u := &User{
		Email: in.Email, FirstName: in.FirstName, LastName: in.LastName,
		Company: in.Company, Position: in.Position, Type: in.Type, PasswordHash: hash,
	}
	key := s.NewKey()
	id, err := s.Store.CreateUser(ctx, u, key)
	if err != nil {
		return "", err
	}
	s.Log.Info("user registered", zap.Int64("user_id", id), zap.String("type", string(in.Type)))
	s.Events.Publish(ctx, notify.UserRegistered{UserID: id, Email: in.Email, ConfirmToken: key})
	return key, nil
}

func (s *Service) Confirm(ctx context.Context, email, key string) error {
	if email == "" || key == "" {
		return apperr.Validation("email and token are required")
	}
	ok, err := s.Store.ConfirmEmail(ctx, strings.TrimSpace(email), key)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("the token or email is incorrectly specified")
	}
	return nil
}

// Login returns the user's API token. Unknown users, wrong passwords and
// unconfirmed accounts all fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", apperr.Validation("email and password are required")
	}
	u, err := s.Store.UserByEmail(ctx, email)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		return "", apperr.Forbidden("failed to authorize")
	}
	if err != nil {
		return "", err
	}
	if !checkPassword(u.PasswordHash, password) || !u.IsActive {
		return "", apperr.Forbidden("failed to authorize")
	}
	return s.Store.IssueToken(ctx, u.ID, s.NewKey())
}

// RequestPasswordReset emails a reset token to an active account. Unknown
// or inactive emails succeed silently so the endpoint does not reveal
// which addresses are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Validation("email is required")
	}
	u, err := s.Store.UserByEmail(ctx, email)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		s.Log.Info("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		s.Log.Info("password reset for inactive user", zap.Int64("user_id", u.ID))
		return nil
	}
	key := s.NewKey()
	if err := s.Store.IssueResetToken(ctx, u.ID, key); err != nil {
		return err
	}
	s.Events.Publish(ctx, notify.PasswordResetRequested{UserID: u.ID, Email: u.Email, Token: key})
	return nil
}

// ConfirmPasswordReset sets a new password using a token from
// RequestPasswordReset. The token is single use and existing API tokens
// stop working.
func (s *Service) ConfirmPasswordReset(ctx context.Context, key, password string) error {
	if key == "" || password == "" {
		return apperr.Validation("token and password are required")
	}
	invalid := apperr.Validation("the password reset token is invalid or expired")
	u, err := s.Store.UserByResetToken(ctx, key, ResetTokenTTL)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		return invalid
	}
	if err != nil {
		return err
	}
	if err := passwordError(password, u.Email); err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	ok, err := s.Store.ResetPassword(ctx, u.ID, key, hash)
	if err != nil {
		return err
	}
	if !ok {
		return invalid
	}
	s.Log.Info("password reset", zap.Int64("user_id", u.ID))
	return nil
}

func (s *Service) Logout(ctx context.Context, p auth.Principal) error {
	return s.Store.DeleteTokens(ctx, p.UserID())
}

// Authenticate maps an API token to the caller's principal.
func (s *Service) Authenticate(ctx context.Context, key string) (auth.Principal, error) {
	if key == "" {
		return nil, apperr.Unauthorized("authentication credentials were not provided")
	}
	u, err := s.Store.UserByToken(ctx, key)
	if err != nil {
		return nil, err
	}
	p, ok := auth.NewPrincipal(u.ID, u.Email, u.Type)
	if !ok {
		return nil, apperr.Forbidden("user type %q has no access", u.Type)
	}
	return p, nil
}

func (s *Service) Details(ctx context.Context, p auth.Principal) (*User, error) {
	u, err := s.Store.UserByID(ctx, p.UserID())
	if err != nil {
		return nil, err
	}
	if u.Contacts, err = s.Store.Contacts(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) UpdateDetails(ctx context.Context, p auth.Principal, patch DetailsPatch) error {
	if err := s.check(patch); err != nil {
		return err
	}
	var hash string
	if patch.Password != nil {
		if err := passwordError(*patch.Password, p.Email()); err != nil {
			return err
		}
		var err error
		if hash, err = hashPassword(*patch.Password); err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
	}
	return s.Store.UpdateUser(ctx, p.UserID(), patch, hash)
}

func (s *Service) Contacts(ctx context.Context, p auth.Principal) ([]Contact, error) {
	return s.Store.Contacts(ctx, p.UserID())
}

func (s *Service) AddContact(ctx context.Context, p auth.Principal, in ContactInput) (int64, error) {
	if err := s.check(in); err != nil {
		return 0, err
	}
	return s.Store.CreateContact(ctx, p.UserID(), in)
}

func (s *Service) UpdateContact(ctx context.Context, p auth.Principal, patch ContactPatch) error {
	if err := s.check(patch); err != nil {
		return err
	}
	return s.Store.UpdateContact(ctx, p.UserID(), patch)
}

// DeleteContacts removes the listed contacts owned by the caller. It fails
// only when none of them could be removed.
func (s *Service) DeleteContacts(ctx context.Context, p auth.Principal, ids []int64) (DeleteResult, error) {
	res := DeleteResult{Deleted: []int64{}, NotFound: []int64{}}
	if len(ids) == 0 {
		return res, apperr.Validation("ids_contact is required")
	}
	for _, id := range ids {
		if id <= 0 {
			return res, apperr.Validation("contact id %d is invalid", id)
		}
	}
	got, err := s.Store.DeleteContacts(ctx, p.UserID(), ids)
	if err != nil {
		return res, err
	}
	deleted := map[int64]bool{}
	for _, id := range got {
		deleted[id] = true
	}
	seen := map[int64]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if deleted[id] {
			res.Deleted = append(res.Deleted, id)
		} else {
			res.NotFound = append(res.NotFound, id)
		}
	}
	if len(res.Deleted) == 0 {
		return res, apperr.NotFound("contacts %v are missing or do not belong to the user", res.NotFound)
	}
	return res, nil
}
