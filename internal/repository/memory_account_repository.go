package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

type memoryAccountRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]domain.Account
	byEmail map[string]int64
	now     func() time.Time
}

// NewMemoryAccountRepository returns a process-local directory. Identifiers
// grow monotonically and are never handed out twice.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{
		byID:    make(map[int64]domain.Account),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

func (r *memoryAccountRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *memoryAccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	account := r.byID[id]
	return &account, nil
}

func (r *memoryAccountRepository) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *memoryAccountRepository) Save(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := *account
	now := r.now().UTC()

	if saved.ID == 0 {
		if _, taken := r.byEmail[saved.Email]; taken {
			return nil, ErrDuplicateEmail
		}
		r.nextID++
		saved.ID = r.nextID
		saved.CreatedAt = now
		saved.UpdatedAt = now
		r.byID[saved.ID] = saved
		r.byEmail[saved.Email] = saved.ID
		return &saved, nil
	}

	existing, ok := r.byID[saved.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if owner, taken := r.byEmail[saved.Email]; taken && owner != saved.ID {
		return nil, ErrDuplicateEmail
	}
	delete(r.byEmail, existing.Email)
	saved.CreatedAt = existing.CreatedAt
	saved.UpdatedAt = now
	r.byID[saved.ID] = saved
	r.byEmail[saved.Email] = saved.ID
	return &saved, nil
}

func (r *memoryAccountRepository) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, account.Email)
	return nil
}

func (r *memoryAccountRepository) ExistsByID(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok, nil
}

func (r *memoryAccountRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

func (r *memoryAccountRepository) FindAll(_ context.Context) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := make([]domain.Account, 0, len(r.byID))
	for _, account := range r.byID {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}
