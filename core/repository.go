package core

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserListItem is a projection for admin user listing (no secrets).
type UserListItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      int       `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrAlreadyExisting is returned when a user name is taken.
var ErrAlreadyExisting = errors.New("user already exists")

// UserRepository is the full user persistence used by the API on top of UserStore.
type UserRepository interface {
	UserStore
	Create(ctx context.Context, u *User) (int64, error)
	Delete(ctx context.Context, id int64) error
	HasRole(ctx context.Context, minRole int) (bool, error)
	List(ctx context.Context, page, perPage int) ([]UserListItem, int, error)
}

// PgUserRepository implements UserRepository on the users table:
//
//	id bigserial, name text unique, role int, password_hash bytea,
//	password_salt bytea, token_timestamp timestamptz null, token bytea,
//	created_at timestamptz default now()
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByName(ctx context.Context, name string) (*User, error) {
	const q = `SELECT id, name, role, password_hash, password_salt, token_timestamp, token, created_at FROM users WHERE name=$1`
	var u User
	var ts *time.Time
	err := r.db.QueryRow(ctx, q, name).Scan(&u.ID, &u.Name, &u.Role, &u.PasswordHash, &u.PasswordSalt, &ts, &u.Token, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if ts != nil {
		u.TokenTimestamp = *ts
	}
	return &u, nil
}

// buildUserUpdate renders fields as one UPDATE statement. ok is false when
// there is nothing to write.
func buildUserUpdate(id int64, f UserFields) (q string, args []any, ok bool) {
	var sets []string
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+"=$"+strconv.Itoa(len(args)))
	}
	if f.Name != nil {
		add("name", *f.Name)
	}
	if f.Role != nil {
		add("role", *f.Role)
	}
	if f.PasswordHash != nil {
		add("password_hash", f.PasswordHash)
	}
	if f.PasswordSalt != nil {
		add("password_salt", f.PasswordSalt)
	}
	if f.TokenTimestamp != nil {
		add("token_timestamp", *f.TokenTimestamp)
	}
	if f.Token != nil {
		add("token", f.Token)
	}
	if len(sets) == 0 {
		return "", nil, false
	}
	args = append(args, id)
	q = "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id=$" + strconv.Itoa(len(args))
	return q, args, true
}

func (r *PgUserRepository) Persist(ctx context.Context, id int64, fields UserFields) error {
	q, args, ok := buildUserUpdate(id, fields)
	if !ok {
		return nil
	}
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Now reads the database clock so that token ages never depend on the API host's clock.
func (r *PgUserRepository) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := r.db.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

func (r *PgUserRepository) Create(ctx context.Context, u *User) (int64, error) {
	const q = `INSERT INTO users (name, role, password_hash, password_salt, token_timestamp, token)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`
	var ts *time.Time
	if !u.TokenTimestamp.IsZero() {
		ts = &u.TokenTimestamp
	}
	if err := r.db.QueryRow(ctx, q, u.Name, u.Role, u.PasswordHash, u.PasswordSalt, ts, u.Token).Scan(&u.ID, &u.CreatedAt); err != nil {
		return 0, mapUniqueViolation(err)
	}
	return u.ID, nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgUserRepository) HasRole(ctx context.Context, minRole int) (bool, error) {
	const q = `SELECT 1 FROM users WHERE role >= $1 LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q, minRole).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns paginated users without secrets.
func (r *PgUserRepository) List(ctx context.Context, page, perPage int) ([]UserListItem, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, name, role, created_at FROM users ORDER BY id LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]UserListItem, 0, perPage)
	for rows.Next() {
		var u UserListItem
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExisting
	}
	return err
}
