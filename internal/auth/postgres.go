package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

const userColumns = `id, username, email, full_name, avatar_url, cover_image_url, password_hash, coalesce(refresh_token, ''), created_at, updated_at`

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, email, full_name, avatar_url, cover_image_url, password_hash)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Email, u.FullName, u.AvatarURL, u.CoverImageURL, u.PasswordHash,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1 or email=$1`, identifier)
	return scanUser(row)
}

func (s *PGStore) SetRefreshToken(ctx context.Context, id, token string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token=nullif($2,''), updated_at=now() where id=$1`,
		id, token)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken is the serialization point for refresh: the swap only
// lands when old is still the stored value, so concurrent rotations for the
// same user cannot both succeed.
func (s *PGStore) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token=$3, updated_at=now() where id=$1 and refresh_token=$2`,
		id, oldToken, newToken)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *PGStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) UpdateProfile(ctx context.Context, id, fullName, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`update users set full_name=$2, email=$3, updated_at=now() where id=$1
		 returning `+userColumns,
		id, fullName, email)
	user, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, ErrAlreadyExists
	}
	return user, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FullName, &u.AvatarURL, &u.CoverImageURL,
		&u.PasswordHash, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
