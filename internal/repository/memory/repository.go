package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"codexcity/internal/model"
	"codexcity/internal/repository"
)

// Rows are copied on the way in and out so callers never share state with
// the store, the same way a database round-trip behaves.

type InMemoryUserRepository struct {
	users map[string]*model.User
	mutex sync.RWMutex
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users: make(map[string]*model.User),
	}
}

func copyUser(u *model.User) *model.User {
	c := *u
	if u.LastPollAt != nil {
		at := *u.LastPollAt
		c.LastPollAt = &at
	}
	return &c
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *model.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *InMemoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	return copyUser(user), nil
}

func (r *InMemoryUserRepository) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, user := range r.users {
		if user.GoogleID == googleID {
			return copyUser(user), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *model.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.users[user.ID]; !exists {
		return repository.ErrNotFound
	}
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *InMemoryUserRepository) SetManualOverride(ctx context.Context, id string, active bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, exists := r.users[id]
	if !exists {
		return repository.ErrNotFound
	}
	user.ManualOverrideActive = active
	user.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryUserRepository) SetLastPollAt(ctx context.Context, id string, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user, exists := r.users[id]
	if !exists {
		return repository.ErrNotFound
	}
	user.LastPollAt = &at
	return nil
}

func (r *InMemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.users, id)
	return nil
}

type InMemoryTokenRepository struct {
	tokens map[string]*model.Token
	mutex  sync.RWMutex
}

func NewInMemoryTokenRepository() *InMemoryTokenRepository {
	return &InMemoryTokenRepository{
		tokens: make(map[string]*model.Token),
	}
}

func (r *InMemoryTokenRepository) FindByUserID(ctx context.Context, userID string) (*model.Token, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	token, exists := r.tokens[userID]
	if !exists {
		return nil, repository.ErrNotFound
	}
	c := *token
	return &c, nil
}

func (r *InMemoryTokenRepository) Upsert(ctx context.Context, token *model.Token) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c := *token
	now := time.Now()
	if existing, exists := r.tokens[token.UserID]; exists {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.tokens[token.UserID] = &c
	return nil
}

func (r *InMemoryTokenRepository) Delete(ctx context.Context, userID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.tokens, userID)
	return nil
}

type InMemoryTemplateRepository struct {
	templates map[string]*model.Template
	mutex     sync.RWMutex
}

func NewInMemoryTemplateRepository() *InMemoryTemplateRepository {
	return &InMemoryTemplateRepository{
		templates: make(map[string]*model.Template),
	}
}

func (r *InMemoryTemplateRepository) Create(ctx context.Context, template *model.Template) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c := *template
	r.templates[template.ID] = &c
	return nil
}

func (r *InMemoryTemplateRepository) FindByID(ctx context.Context, id string) (*model.Template, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	template, exists := r.templates[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	c := *template
	return &c, nil
}

// FindByUserID returns templates oldest first, matching the postgres order.
func (r *InMemoryTemplateRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Template, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.Template
	for _, template := range r.templates {
		if template.UserID == userID {
			c := *template
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *InMemoryTemplateRepository) Update(ctx context.Context, template *model.Template) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.templates[template.ID]; !exists {
		return repository.ErrNotFound
	}
	c := *template
	r.templates[template.ID] = &c
	return nil
}

func (r *InMemoryTemplateRepository) Delete(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.templates, id)
	return nil
}

type InMemoryEmailLogRepository struct {
	logs  []*model.EmailLog
	mutex sync.RWMutex
}

func NewInMemoryEmailLogRepository() *InMemoryEmailLogRepository {
	return &InMemoryEmailLogRepository{}
}

func (r *InMemoryEmailLogRepository) Create(ctx context.Context, log *model.EmailLog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	c := *log
	r.logs = append(r.logs, &c)
	return nil
}

// FindByUserID returns the user's logs newest first.
func (r *InMemoryEmailLogRepository) FindByUserID(ctx context.Context, userID string) ([]*model.EmailLog, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*model.EmailLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if r.logs[i].UserID == userID {
			c := *r.logs[i]
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ProcessedAt.After(result[j].ProcessedAt)
	})
	return result, nil
}

func (r *InMemoryEmailLogRepository) HasSentResponse(ctx context.Context, userID, gmailMessageID string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, log := range r.logs {
		if log.UserID == userID && log.GmailMessageID == gmailMessageID && log.ResponseSent {
			return true, nil
		}
	}
	return false, nil
}
