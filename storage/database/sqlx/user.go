package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/user"
)

var userColumns = []string{
	"id", "name", "email", "role", "student_id", "is_active", "password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	StudentID    *string   `db:"student_id"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    time.Time `db:"last_login"`
}

func (r userRow) model() user.User {
	usr := user.User(r)
	usr.CreatedAt = usr.CreatedAt.UTC()
	usr.UpdatedAt = usr.UpdatedAt.UTC()
	usr.LastLogin = usr.LastLogin.UTC()
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) getRow(ctx context.Context, b squirrel.Sqlizer) (user.User, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var row userRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailExists
		}
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, storeErr(query, err)
	}
	return row.model(), nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	return repo.getRow(ctx, psql.Insert("users").
		Columns(userColumns...).
		Values(
			newID(usr.ID), usr.Name, usr.Email, usr.Role, usr.StudentID, usr.IsActive, usr.PasswordHash,
			usr.CreatedAt, usr.UpdatedAt, usr.LastLogin,
		).
		Suffix("RETURNING "+columnList(userColumns)))
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where squirrel.Eq
	switch {
	case filter.ID != "":
		where = squirrel.Eq{"id": filter.ID}
	case filter.Email != "":
		where = squirrel.Eq{"email": filter.Email}
	case filter.StudentID != "":
		where = squirrel.Eq{"student_id": filter.StudentID}
	default:
		return user.User{}, user.ErrNotFound
	}
	return repo.getRow(ctx, psql.Select(userColumns...).From("users").Where(where).Limit(1))
}

func (repo *userRepository) QueryUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := selectAll(ctx, repo.db, &rows, psql.Select(userColumns...).From("users").OrderBy("created_at", "id")); err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.model())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	return repo.getRow(ctx, psql.Update("users").
		SetMap(map[string]interface{}{
			"name":          usr.Name,
			"email":         usr.Email,
			"role":          usr.Role,
			"student_id":    usr.StudentID,
			"is_active":     usr.IsActive,
			"password_hash": usr.PasswordHash,
			"updated_at":    usr.UpdatedAt,
			"last_login":    usr.LastLogin,
		}).
		Where(squirrel.Eq{"id": usr.ID}).
		Suffix("RETURNING "+columnList(userColumns)))
}
