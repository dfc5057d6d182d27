package finance

import "context"

// Store describes the persistence operations for finance records. Create
// calls surface ErrDuplicate on unique constraint hits (province name,
// department name, budget year+department).
type Store interface {
	CreateProvince(ctx context.Context, p *Province) error
	FindProvince(ctx context.Context, id string) (*Province, error)
	ListProvinces(ctx context.Context) ([]*Province, error)
	UpdateProvince(ctx context.Context, p *Province) error
	DeleteProvince(ctx context.Context, id string) error

	CreateDepartment(ctx context.Context, d *Department) error
	FindDepartment(ctx context.Context, id string) (*Department, error)
	ListDepartments(ctx context.Context) ([]*Department, error)
	UpdateDepartment(ctx context.Context, d *Department) error
	DeleteDepartment(ctx context.Context, id string) error

	CreateProject(ctx context.Context, p *Project) error
	FindProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id string) error

	CreateObligation(ctx context.Context, o *Obligation) error
	FindObligation(ctx context.Context, id string) (*Obligation, error)
	ListObligations(ctx context.Context) ([]*Obligation, error)
	UpdateObligation(ctx context.Context, o *Obligation) error
	DeleteObligation(ctx context.Context, id string) error

	CreateBudget(ctx context.Context, b *Budget) error
	FindBudget(ctx context.Context, id string) (*Budget, error)
	ListBudgets(ctx context.Context, year int) ([]*Budget, error)
	UpdateBudget(ctx context.Context, b *Budget) error

	CreateTransaction(ctx context.Context, t *Transaction) error
	FindTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}
