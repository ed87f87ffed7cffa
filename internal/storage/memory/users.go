package memory

import (
	"sync"

	"github.com/basit-devBE/commerce-core/internal/domain"
)

// UserDirectory — in-memory справочник пользователей.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewUserDirectory создаёт справочник с переданными пользователями.
func NewUserDirectory(users ...domain.User) *UserDirectory {
	d := &UserDirectory{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// GetUser возвращает покупателя или ErrUserNotFound.
func (d *UserDirectory) GetUser(userID string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

// SetUser добавляет или заменяет пользователя (используется в тестах и seed-данных).
func (d *UserDirectory) SetUser(user domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

var _ domain.UserDirectory = (*UserDirectory)(nil)
