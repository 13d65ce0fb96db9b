package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/hostel/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func copyUser(u *user.User) user.User {
	cp := *u
	cp.StudentID = copyStringPtr(u.StudentID)
	if u.PasswordHash != nil {
		cp.PasswordHash = append([]byte(nil), u.PasswordHash...)
	}
	return cp
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[usr.ID]; ok {
		return user.User{}, errDuplicateID
	}
	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = repo.db.newID(usr.ID)
	stored := copyUser(&usr)
	repo.db.users[usr.ID] = &stored
	return copyUser(&stored), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if u, ok := repo.db.users[filter.ID]; ok {
			return copyUser(u), nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if matchesUser(filter, u) {
			return copyUser(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func matchesUser(filter user.GetFilter, u *user.User) bool {
	switch {
	case filter.Email != "":
		return u.Email == filter.Email
	case filter.StudentID != "":
		return u.StudentID != nil && *u.StudentID == filter.StudentID
	}
	return false
}

func (repo *userRepository) QueryUsers(ctx context.Context) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return repo.db.less(users[i].ID, users[j].ID) })
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.ID != usr.ID && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	stored := copyUser(&usr)
	stored.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = &stored
	return copyUser(&stored), nil
}
