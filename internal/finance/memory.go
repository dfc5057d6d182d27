package finance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"parishledger.org/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store with the same conflict semantics as the
// Postgres implementation. Used by handler tests and the smoke binary.
type MemoryStore struct {
	mu           sync.RWMutex
	provinces    map[string]*Province
	departments  map[string]*Department
	projects     map[string]*Project
	obligations  map[string]*Obligation
	budgets      map[string]*Budget
	transactions map[string]*Transaction
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		provinces:    make(map[string]*Province),
		departments:  make(map[string]*Department),
		projects:     make(map[string]*Project),
		obligations:  make(map[string]*Obligation),
		budgets:      make(map[string]*Budget),
		transactions: make(map[string]*Transaction),
		now:          time.Now,
	}
}

// Provinces.

func (s *MemoryStore) CreateProvince(_ context.Context, p *Province) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.provinces {
		if strings.EqualFold(existing.Name, p.Name) {
			return ErrDuplicate
		}
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.provinces[p.ID] = &cp
	return nil
}

func (s *MemoryStore) FindProvince(_ context.Context, id string) (*Province, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.provinces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProvinces(_ context.Context) ([]*Province, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Province, 0, len(s.provinces))
	for _, p := range s.provinces {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateProvince(_ context.Context, p *Province) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.provinces[p.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.provinces {
		if id != p.ID && strings.EqualFold(other.Name, p.Name) {
			return ErrDuplicate
		}
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	cp := *p
	s.provinces[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteProvince(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.provinces[id]; !ok {
		return ErrNotFound
	}
	delete(s.provinces, id)
	return nil
}

// Departments.

func (s *MemoryStore) CreateDepartment(_ context.Context, d *Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.departments {
		if strings.EqualFold(existing.Name, d.Name) {
			return ErrDuplicate
		}
	}
	if d.ID == "" {
		d.ID = ids.New()
	}
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	s.departments[d.ID] = &cp
	return nil
}

func (s *MemoryStore) FindDepartment(_ context.Context, id string) (*Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) ListDepartments(_ context.Context) ([]*Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Department, 0, len(s.departments))
	for _, d := range s.departments {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateDepartment(_ context.Context, d *Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.departments[d.ID]
	if !ok {
		return ErrNotFound
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = s.now()
	cp := *d
	s.departments[d.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteDepartment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.departments[id]; !ok {
		return ErrNotFound
	}
	delete(s.departments, id)
	return nil
}

// Projects.

func (s *MemoryStore) CreateProject(_ context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *MemoryStore) FindProject(_ context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.projects[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

// Obligations.

func (s *MemoryStore) CreateObligation(_ context.Context, o *Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = ids.New()
	}
	o.CreatedAt = s.now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	s.obligations[o.ID] = &cp
	return nil
}

func (s *MemoryStore) FindObligation(_ context.Context, id string) (*Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.obligations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) ListObligations(_ context.Context) ([]*Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Obligation, 0, len(s.obligations))
	for _, o := range s.obligations {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateObligation(_ context.Context, o *Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.obligations[o.ID]
	if !ok {
		return ErrNotFound
	}
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = s.now()
	cp := *o
	s.obligations[o.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteObligation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.obligations[id]; !ok {
		return ErrNotFound
	}
	delete(s.obligations, id)
	return nil
}

// Budgets.

func (s *MemoryStore) CreateBudget(_ context.Context, b *Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.budgets {
		if existing.Year == b.Year && existing.DepartmentID == b.DepartmentID {
			return ErrDuplicate
		}
	}
	if b.ID == "" {
		b.ID = ids.New()
	}
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	s.budgets[b.ID] = &cp
	return nil
}

func (s *MemoryStore) FindBudget(_ context.Context, id string) (*Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) ListBudgets(_ context.Context, year int) ([]*Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Budget
	for _, b := range s.budgets {
		if year > 0 && b.Year != year {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].DepartmentID < out[j].DepartmentID
	})
	return out, nil
}

func (s *MemoryStore) UpdateBudget(_ context.Context, b *Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.budgets[b.ID]
	if !ok {
		return ErrNotFound
	}
	b.Year = existing.Year
	b.DepartmentID = existing.DepartmentID
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = s.now()
	cp := *b
	s.budgets[b.ID] = &cp
	return nil
}

// Transactions.

func (s *MemoryStore) CreateTransaction(_ context.Context, t *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = ids.New()
	}
	t.CreatedAt = s.now()
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

func (s *MemoryStore) FindTransaction(_ context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, filter TransactionFilter) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, t := range s.transactions {
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.ProvinceID != "" && t.ProvinceID != filter.ProvinceID {
			continue
		}
		if filter.DepartmentID != "" && t.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}
