package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) EmailExists(_ context.Context, email, excludedID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for id, r := range repo.db.t.users {
		if r.val.Email == email && id != excludedID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.t.users[usr.ID]; ok {
		return user.User{}, errors.Errorf("duplicate user id %q", usr.ID)
	}
	for _, r := range repo.db.t.users {
		if r.val.Email == usr.Email {
			return user.User{}, errors.Errorf("duplicate user email %q", usr.Email)
		}
	}
	repo.db.t.users[usr.ID] = row[user.User]{val: usr, seq: repo.db.nextSeq()}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if r, ok := repo.db.t.users[filter.ID]; ok {
			return r.val, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, r := range repo.db.t.users {
			if r.val.Email == filter.Email {
				return r.val, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, ids []string, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if r, ok := repo.db.t.users[id]; ok {
			users = append(users, r.val)
		}
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	defer repo.db.lockWrite(exec)()

	r, ok := repo.db.t.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.CreatedAt = r.val.CreatedAt
	r.val = usr
	repo.db.t.users[usr.ID] = r
	return usr, nil
}
