package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/calendar-preferences/internal/database"
	"github.com/iliyamo/calendar-preferences/internal/model"
)

// UserRepo reads and lazily creates rows in the 'users' table.
type UserRepo struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

func NewUserRepo(db *sql.DB, d database.Dialect) *UserRepo {
	return &UserRepo{db: db, dialect: d, now: time.Now}
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var (
		u                    model.User
		email, name, image   sql.NullString
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind("SELECT id,email,name,image,created_at,updated_at FROM users WHERE id=?"),
		id).Scan(&u.ID, &email, &name, &image, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, errors.Wrapf(err, "get user %s", id)
	}
	u.Email = fromNull(email)
	u.Name = fromNull(name)
	u.Image = fromNull(image)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

// CreateIfMissing inserts u unless a row with the same id exists. It
// reports whether this call created the row. A concurrent insert of the
// same id is not an error.
func (r *UserRepo) CreateIfMissing(ctx context.Context, u model.User) (bool, error) {
	now := toMillis(r.now())
	q := "INSERT INTO users (id, email, name, image, created_at, updated_at) VALUES (?,?,?,?,?,?)"
	switch r.dialect {
	case database.MySQL:
		q += " ON DUPLICATE KEY UPDATE id = id"
	default:
		q += " ON CONFLICT (id) DO NOTHING"
	}
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(q),
		u.ID, toNull(u.Email), toNull(u.Name), toNull(u.Image), now, now)
	if err != nil {
		return false, errors.Wrapf(err, "create user %s", u.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "create user rows affected")
	}
	return n == 1, nil
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func toNull(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }
