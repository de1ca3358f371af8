package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"akimat/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// pq: unique_violation
const pgUniqueViolation = "23505"

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByIIN(ctx context.Context, iin string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	CreatePending(ctx context.Context, iin string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error

	CompleteRegistration(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	SetIIN(ctx context.Context, id int, iin string) error
	SetStatus(ctx context.Context, id int, status models.UserStatus) (*models.User, error)
	SetRole(ctx context.Context, id int, role models.UserRole) (*models.User, error)

	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `
	id, iin, email, password_hash, full_name, phone_number,
	organization, position, status, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var (
		iin, email, hash, fullName    sql.NullString
		phone, organization, position sql.NullString
		status, role                  string
	)
	if err := row.Scan(
		&u.ID, &iin, &email, &hash, &fullName, &phone,
		&organization, &position, &status, &role, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.IIN = iin.String
	u.Email = email.String
	u.PasswordHash = hash.String
	u.FullName = fullName.String
	u.PhoneNumber = phone.String
	u.Organization = organization.String
	u.Position = position.String
	u.Status = models.UserStatus(status)
	u.Role = models.UserRole(role)
	return u, nil
}

// mapErr turns driver errors into repository sentinels, keeping the cause.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// withTx runs fn in a transaction; any error rolls it back.
func (r *userRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *userRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapErr("get user by id", err)
	}
	return u, nil
}

func (r *userRepository) GetByIIN(ctx context.Context, iin string) (*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE iin = $1 LIMIT 1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, strings.TrimSpace(iin)))
	if err != nil {
		return nil, mapErr("get user by iin", err)
	}
	return u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, normalizeEmail(email)))
	if err != nil {
		return nil, mapErr("get user by email", err)
	}
	return u, nil
}

// CreatePending inserts an EDS user with no profile and no credential.
// The unique index on iin is the only guard against concurrent first logins:
// the loser gets ErrDuplicate.
func (r *userRepository) CreatePending(ctx context.Context, iin string) (*models.User, error) {
	q := `
		INSERT INTO users (iin, status, role)
		VALUES ($1, $2, $3)
		RETURNING` + userColumns

	var created *models.User
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, q,
			strings.TrimSpace(iin), string(models.StatusPending), string(models.RoleEmployee)))
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, mapErr("create pending user", err)
	}
	return created, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	q := `
		INSERT INTO users (
			iin, email, password_hash, full_name, phone_number,
			organization, position, status, role
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING` + userColumns

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, q,
			nullString(user.IIN),
			nullString(normalizeEmail(user.Email)),
			nullString(user.PasswordHash),
			nullString(user.FullName),
			nullString(user.PhoneNumber),
			nullString(user.Organization),
			nullString(user.Position),
			string(user.Status),
			string(user.Role),
		))
		if err != nil {
			return err
		}
		*user = *u
		return nil
	})
	return mapErr("create user", err)
}

// CompleteRegistration fills the profile and activates the user, but only if
// the row is still pending. ErrNotFound means the row is gone or no longer pending.
func (r *userRepository) CompleteRegistration(ctx context.Context, user *models.User) error {
	q := `
		UPDATE users
		SET email=$1, phone_number=$2, full_name=$3, organization=$4, position=$5,
			status=$6, updated_at=$7
		WHERE id=$8 AND status=$9
		RETURNING` + userColumns

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, q,
			nullString(normalizeEmail(user.Email)),
			nullString(user.PhoneNumber),
			nullString(user.FullName),
			nullString(user.Organization),
			nullString(user.Position),
			string(models.StatusActive),
			time.Now().UTC(),
			user.ID,
			string(models.StatusPending),
		))
		if err != nil {
			return err
		}
		*user = *u
		return nil
	})
	return mapErr("complete registration", err)
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	q := `
		UPDATE users
		SET email=$1, password_hash=$2, full_name=$3, phone_number=$4,
			organization=$5, position=$6, updated_at=$7
		WHERE id=$8
		RETURNING` + userColumns

	u, err := scanUser(r.DB.QueryRowContext(ctx, q,
		nullString(normalizeEmail(user.Email)),
		nullString(user.PasswordHash),
		nullString(user.FullName),
		nullString(user.PhoneNumber),
		nullString(user.Organization),
		nullString(user.Position),
		time.Now().UTC(),
		user.ID,
	))
	if err != nil {
		return mapErr("update profile", err)
	}
	*user = *u
	return nil
}

// SetIIN only fills an empty iin; an already set iin is immutable.
func (r *userRepository) SetIIN(ctx context.Context, id int, iin string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET iin=$1, updated_at=$2 WHERE id=$3 AND iin IS NULL`,
		strings.TrimSpace(iin), time.Now().UTC(), id)
	if err != nil {
		return mapErr("set iin", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr("set iin", err)
	}
	if n == 0 {
		return fmt.Errorf("set iin: %w", ErrNotFound)
	}
	return nil
}

func (r *userRepository) SetStatus(ctx context.Context, id int, status models.UserStatus) (*models.User, error) {
	q := `UPDATE users SET status=$1, updated_at=$2 WHERE id=$3 RETURNING` + userColumns
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, string(status), time.Now().UTC(), id))
	if err != nil {
		return nil, mapErr("set status", err)
	}
	return u, nil
}

func (r *userRepository) SetRole(ctx context.Context, id int, role models.UserRole) (*models.User, error) {
	q := `UPDATE users SET role=$1, updated_at=$2 WHERE id=$3 RETURNING` + userColumns
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, string(role), time.Now().UTC(), id))
	if err != nil {
		return nil, mapErr("set role", err)
	}
	return u, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	q := `SELECT` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, mapErr("list users", err)
	}
	defer rows.Close()

	var res []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr("list users", err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list users", err)
	}
	return res, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var c int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&c); err != nil {
		return 0, mapErr("count users", err)
	}
	return c, nil
}
