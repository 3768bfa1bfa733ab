package action

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erazemk/marketbook/internal/auth"
	"github.com/erazemk/marketbook/internal/guard"
	"github.com/erazemk/marketbook/internal/model"
	"github.com/erazemk/marketbook/internal/store"
)

// Session is a user together with a freshly issued bearer token.
type Session struct {
	User  *model.User
	Token string
}

// Registration holds the fields of a sign-up request.
type Registration struct {
	Name      string
	Email     string
	Password  string
	AdminCode string
}

// Identity registers users, checks credentials and manages profiles.
type Identity struct {
	db         *sql.DB
	pipeline   *Pipeline
	issuer     *auth.Issuer
	adminCode  string
	bcryptCost int
	logger     *slog.Logger
}

// IdentityOptions configures Identity.
type IdentityOptions struct {
	AdminCode  string
	BcryptCost int
}

// NewIdentity creates the identity service.
func NewIdentity(db *sql.DB, pipeline *Pipeline, issuer *auth.Issuer, opts IdentityOptions, logger *slog.Logger) *Identity {
	return &Identity{
		db:         db,
		pipeline:   pipeline,
		issuer:     issuer,
		adminCode:  opts.AdminCode,
		bcryptCost: opts.BcryptCost,
		logger:     logger.With("service", "identity"),
	}
}

// Register creates a regular user. Any existing account with the same
// email blocks registration.
func (s *Identity) Register(ctx context.Context, client model.ClientInfo, r Registration) (*Session, error) {
	email, err := validateRegistration(&r)
	if err != nil {
		return nil, err
	}

	existing, err := store.ListUsersByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: user already exists with this email", model.ErrConflict)
	}

	return s.register(ctx, client, r.Name, email, r.Password, model.RoleUser)
}

// RegisterAdmin creates an admin account when the enrollment code matches.
// Only an existing admin with the same email blocks it; a regular account
// with that email does not.
func (s *Identity) RegisterAdmin(ctx context.Context, client model.ClientInfo, r Registration) (*Session, error) {
	email, err := validateRegistration(&r)
	if err != nil {
		return nil, err
	}
	if r.AdminCode == "" {
		return nil, model.NewValidationError("adminCode", "required")
	}
	if s.adminCode == "" || subtle.ConstantTimeCompare([]byte(r.AdminCode), []byte(s.adminCode)) != 1 {
		return nil, model.NewValidationError("adminCode", "Invalid admin code")
	}

	existing, err := store.GetUserByEmail(ctx, s.db, email, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: admin account already exists for this email", model.ErrConflict)
	}

	return s.register(ctx, client, r.Name, email, r.Password, model.RoleAdmin)
}

func (s *Identity) register(ctx context.Context, client model.ClientInfo, name, email, password, role string) (*Session, error) {
	user, err := Run(ctx, s.pipeline, Step[*model.User]{
		Operation: "user.register",
		Client:    client,
		Mutate: func(ctx context.Context) (*model.User, error) {
			hash, err := auth.HashPassword(password, s.bcryptCost)
			if err != nil {
				return nil, err
			}
			return store.CreateUser(ctx, s.db, name, email, hash, role)
		},
		Audit: func(u *model.User) *model.AuditEntry {
			details := "User registered: " + u.Email
			if u.IsAdmin() {
				details = "Admin registered: " + u.Email
			}
			return &model.AuditEntry{
				ActorUserID:  u.ID,
				Action:       model.ActionRegister,
				ResourceKind: model.ResourceUser,
				ResourceID:   &u.ID,
				Details:      details,
			}
		},
		Notify: func(u *model.User) *model.Notification {
			if u.IsAdmin() {
				return &model.Notification{
					UserID:   u.ID,
					Title:    "Admin Account Created!",
					Message:  "Your admin account has been created successfully. You now have full access to the system.",
					Severity: model.SeveritySuccess,
				}
			}
			return &model.Notification{
				UserID:   u.ID,
				Title:    "Welcome to MarketBook!",
				Message:  "Your account has been created successfully. Start exploring the marketplace!",
				Severity: model.SeveritySuccess,
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// Login checks credentials and issues a token. When the same email holds
// several accounts, role selects one; without it the oldest account whose
// password matches wins.
func (s *Identity) Login(ctx context.Context, client model.ClientInfo, email, password, role string) (*Session, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewValidationError("email", "Please provide email and password")
	}

	user, err := Run(ctx, s.pipeline, Step[*model.User]{
		Operation: "user.login",
		Client:    client,
		Mutate: func(ctx context.Context) (*model.User, error) {
			candidates, err := store.ListUsersByEmail(ctx, s.db, email)
			if err != nil {
				return nil, err
			}
			for i := range candidates {
				u := &candidates[i]
				if role != "" && u.Role != role {
					continue
				}
				if auth.CheckPassword(u.PasswordHash, password) {
					return u, nil
				}
			}
			return nil, fmt.Errorf("%w: Invalid email or password", model.ErrUnauthorized)
		},
		Audit: func(u *model.User) *model.AuditEntry {
			return &model.AuditEntry{
				ActorUserID:  u.ID,
				Action:       model.ActionLogin,
				ResourceKind: model.ResourceUser,
				ResourceID:   &u.ID,
				Details:      "User logged in: " + u.Email,
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// Logout records the logout. Tokens stay valid until they expire.
func (s *Identity) Logout(ctx context.Context, actor *model.User, client model.ClientInfo) error {
	_, err := Run(ctx, s.pipeline, Step[*model.User]{
		Operation: "user.logout",
		Actor:     actor,
		Client:    client,
		Mutate: func(context.Context) (*model.User, error) {
			return actor, nil
		},
		Audit: func(u *model.User) *model.AuditEntry {
			return &model.AuditEntry{
				Action:       model.ActionLogout,
				ResourceKind: model.ResourceUser,
				ResourceID:   &u.ID,
				Details:      "User logged out: " + u.Email,
			}
		},
	})
	return err
}

// Authenticate resolves a bearer token to the current user record.
func (s *Identity) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}
	user, err := store.GetUser(ctx, s.db, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user no longer exists", model.ErrUnauthorized)
	}
	return user, nil
}

// Profile returns the actor's current user record.
func (s *Identity) Profile(ctx context.Context, actor *model.User) (*model.User, error) {
	user, err := store.GetUser(ctx, s.db, actor.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", actor.ID, model.ErrNotFound)
	}
	return user, nil
}

// UpdateProfile applies a sparse patch to the actor's own profile and
// reissues a token. Side channels run only when a tracked field changed.
func (s *Identity) UpdateProfile(ctx context.Context, actor *model.User, client model.ClientInfo, patch model.ProfilePatch) (*Session, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var before *model.User
	user, err := Run(ctx, s.pipeline, Step[*model.User]{
		Operation: "profile.update",
		Actor:     actor,
		Client:    client,
		Authorize: func(ctx context.Context) (guard.Resource, error) {
			u, err := s.Profile(ctx, actor)
			if err != nil {
				return guard.Resource{}, err
			}
			before = u
			return guard.Self(u.ID), nil
		},
		Mutate: func(ctx context.Context) (*model.User, error) {
			var hash string
			if password, ok := patch.Password.Get(); ok {
				h, err := auth.HashPassword(password, s.bcryptCost)
				if err != nil {
					return nil, err
				}
				hash = h
			}
			return store.UpdateProfile(ctx, s.db, before.ID, patch, hash)
		},
		Audit: func(u *model.User) *model.AuditEntry {
			changes := before.Diff(*u)
			if len(changes) == 0 {
				return nil
			}
			return &model.AuditEntry{
				Action:       model.ActionUpdate,
				ResourceKind: model.ResourceProfile,
				ResourceID:   &u.ID,
				Details:      "Profile updated: " + strings.Join(changes, ", "),
			}
		},
		Notify: func(u *model.User) *model.Notification {
			if len(before.Diff(*u)) == 0 {
				return nil
			}
			return &model.Notification{
				UserID:    u.ID,
				Title:     "Profile Updated",
				Message:   "Your profile has been updated successfully.",
				Severity:  model.SeveritySuccess,
				ActionURL: "/profile",
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// Users lists every account. Admin only.
func (s *Identity) Users(ctx context.Context, actor *model.User) ([]model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return store.ListUsers(ctx, s.db)
}

func (s *Identity) session(user *model.User) (*Session, error) {
	token, err := s.issuer.Generate(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

func validateRegistration(r *Registration) (string, error) {
	r.Name = strings.TrimSpace(r.Name)
	email := model.NormalizeEmail(r.Email)

	var errs []model.FieldError
	if r.Name == "" {
		errs = append(errs, model.FieldError{Field: "name", Message: "required"})
	}
	if err := model.ValidateEmail(email); err != nil {
		errs = append(errs, model.FieldError{Field: "email", Message: "a valid email is required"})
	}
	if err := model.ValidatePassword(r.Password); err != nil {
		errs = append(errs, model.FieldError{Field: "password", Message: fmt.Sprintf("must be at least %d characters long", model.MinPasswordLength)})
	}
	if len(errs) > 0 {
		return "", model.NewValidationErrors(errs)
	}
	return email, nil
}
