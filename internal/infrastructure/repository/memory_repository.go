package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/google/uuid"
)

// MemoryAccountRepository keeps accounts in process memory
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewMemoryAccountRepository creates an account store seeded with accounts
func NewMemoryAccountRepository(accounts ...*domain.Account) *MemoryAccountRepository {
	r := &MemoryAccountRepository{accounts: map[string]*domain.Account{}}
	for _, a := range accounts {
		_ = r.Save(context.Background(), a)
	}
	return r
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

func (r *MemoryAccountRepository) ListActive(ctx context.Context) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if a.Active {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save stores a copy of the account, assigning an id when it has none
func (r *MemoryAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return fmt.Errorf("account is nil")
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *MemoryAccountRepository) RecordConnectionTest(ctx context.Context, id string, record domain.ConnectionTestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found")
	}
	tested, success := record.TestedAt, record.Success
	a.LastTestAt = &tested
	a.LastTestSuccess = &success
	a.LastTestMessage = record.Message
	return nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	cp.Credentials = make(map[string]string, len(a.Credentials))
	for k, v := range a.Credentials {
		cp.Credentials[k] = v
	}
	if a.Settings != nil {
		cp.Settings = make(map[string]any, len(a.Settings))
		for k, v := range a.Settings {
			cp.Settings[k] = v
		}
	}
	return &cp
}

type fieldKey struct {
	channel  domain.ChannelKey
	category string
	code     string
}

type listKey struct {
	channel domain.ChannelKey
	code    string
}

// MemorySchemaRepository keeps field definitions and value lists in process memory
type MemorySchemaRepository struct {
	mu     sync.RWMutex
	fields map[fieldKey]domain.FieldDefinition
	lists  map[listKey]domain.ValueList
}

func NewMemorySchemaRepository() *MemorySchemaRepository {
	return &MemorySchemaRepository{
		fields: map[fieldKey]domain.FieldDefinition{},
		lists:  map[listKey]domain.ValueList{},
	}
}

func (r *MemorySchemaRepository) UpsertValueLists(ctx context.Context, lists []domain.ValueList) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vl := range lists {
		k := listKey{channel: vl.Channel, code: vl.Code}
		if existing, ok := r.lists[k]; ok {
			vl.DiscoveredAt = existing.DiscoveredAt
		}
		vl.Values = append([]string(nil), vl.Values...)
		r.lists[k] = vl
	}
	return nil
}

func (r *MemorySchemaRepository) UpsertFieldDefinitions(ctx context.Context, fields []domain.FieldDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fields {
		k := fieldKey{channel: f.Channel, category: f.Category, code: f.Code}
		if existing, ok := r.fields[k]; ok {
			f.DiscoveredAt = existing.DiscoveredAt
		}
		r.fields[k] = f
	}
	return nil
}

func (r *MemorySchemaRepository) DeactivateMissingFields(ctx context.Context, channel domain.ChannelKey, keep []domain.FieldKey) (int, error) {
	kept := make(map[domain.FieldKey]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, f := range r.fields {
		if k.channel != channel || !f.Active || kept[f.Key()] {
			continue
		}
		f.Active = false
		r.fields[k] = f
		n++
	}
	return n, nil
}

func (r *MemorySchemaRepository) MarkValueListsFailed(ctx context.Context, channel domain.ChannelKey, syncError string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, vl := range r.lists {
		if k.channel != channel {
			continue
		}
		vl.SyncStatus = domain.SyncStatusFailed
		vl.SyncError = syncError
		r.lists[k] = vl
		n++
	}
	return n, nil
}

func (r *MemorySchemaRepository) ListFieldDefinitions(ctx context.Context, channel *domain.ChannelKey) ([]domain.FieldDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.FieldDefinition
	for k, f := range r.fields {
		if channel == nil || k.channel == *channel {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel.String() != out[j].Channel.String() {
			return out[i].Channel.String() < out[j].Channel.String()
		}
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (r *MemorySchemaRepository) ListValueLists(ctx context.Context, channel *domain.ChannelKey) ([]domain.ValueList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ValueList
	for k, vl := range r.lists {
		if channel == nil || k.channel == *channel {
			out = append(out, vl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel.String() != out[j].Channel.String() {
			return out[i].Channel.String() < out[j].Channel.String()
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *MemorySchemaRepository) LastVerifiedAt(ctx context.Context, channel domain.ChannelKey) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last *time.Time
	for k, f := range r.fields {
		if k.channel != channel || !f.Active {
			continue
		}
		if last == nil || f.LastVerifiedAt.After(*last) {
			t := f.LastVerifiedAt
			last = &t
		}
	}
	return last, nil
}
