package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/Additional-Code/comanda/internal/database"
	"github.com/Additional-Code/comanda/internal/entity"
)

// ErrNotFound is returned when a user is missing.
var ErrNotFound = errors.New("user not found")

// Repository reads operator identities.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByLogin fetches a user by login.
func (r *Repository) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("login = ?", login).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Exists reports whether the user id is known.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	return r.reader.NewSelect().Model((*entity.User)(nil)).Where("id = ?", id).Exists(ctx)
}

// Create persists a user.
func (r *Repository) Create(ctx context.Context, u *entity.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	_, err := r.writer.NewInsert().Model(u).Exec(ctx)
	return err
}

// List returns all users.
func (r *Repository) List(ctx context.Context) ([]*entity.User, error) {
	var users []*entity.User
	err := r.reader.NewSelect().Model(&users).Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return users, nil
}
