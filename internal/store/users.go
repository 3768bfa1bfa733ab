package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/erazemk/marketbook/internal/model"
)

const userColumns = `id, name, email, password_hash, role, bio, phone, location, avatar, created_at, updated_at`

// CreateUser creates a new user. The same email may exist once per role.
func CreateUser(ctx context.Context, db *sql.DB, name, email, passwordHash, role string) (*model.User, error) {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, email, passwordHash, role, now, now,
	)
	if isUniqueViolation(err, "users.email") {
		return nil, fmt.Errorf("%w: user already exists", model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email and role.
func GetUserByEmail(ctx context.Context, db *sql.DB, email, role string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND role = ?`, email, role,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsersByEmail returns every account registered with email, oldest first.
func ListUsersByEmail(ctx context.Context, db *sql.DB, email string) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY created_at, id`, email,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users by email: %w", err)
	}
	return scanUsers(rows)
}

// ListUsers returns all users, newest first.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return scanUsers(rows)
}

// UpdateProfile applies a sparse profile patch. A set password must already
// be hashed into passwordHash; the plain text in patch is ignored.
func UpdateProfile(ctx context.Context, db *sql.DB, id int64, patch model.ProfilePatch, passwordHash string) (*model.User, error) {
	set := map[string]any{"updated_at": time.Now().UTC()}
	if v, ok := patch.Name.Get(); ok {
		set["name"] = v
	}
	if v, ok := patch.Email.Get(); ok {
		set["email"] = model.NormalizeEmail(v)
	}
	setString(set, "bio", patch.Bio)
	setString(set, "phone", patch.Phone)
	setString(set, "location", patch.Location)
	setString(set, "avatar", patch.Avatar)
	if passwordHash != "" {
		set["password_hash"] = passwordHash
	}

	query, args, err := sq.Update("users").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building profile update: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err, "users.email") {
		return nil, fmt.Errorf("%w: email already in use", model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("updating profile %d: %w", id, model.ErrNotFound)
	}

	return GetUser(ctx, db, id)
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.Bio, &u.Phone, &u.Location, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUsers(rows *sql.Rows) ([]model.User, error) {
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
