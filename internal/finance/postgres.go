package finance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"parishledger.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFoundOrErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affectedOrNotFound(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Provinces.

func (s *PGStore) CreateProvince(ctx context.Context, p *Province) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into provinces(id, name, region, currency, allocation_percent)
		 values($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.Region, p.Currency, p.AllocationPercent,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PGStore) FindProvince(ctx context.Context, id string) (*Province, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, region, currency, allocation_percent, created_at, updated_at
		 from provinces where id=$1`, id)
	var p Province
	err := row.Scan(&p.ID, &p.Name, &p.Region, &p.Currency, &p.AllocationPercent, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFoundOrErr(err)
	}
	return &p, nil
}

func (s *PGStore) ListProvinces(ctx context.Context) ([]*Province, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, region, currency, allocation_percent, created_at, updated_at
		 from provinces order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Province
	for rows.Next() {
		var p Province
		if err := rows.Scan(&p.ID, &p.Name, &p.Region, &p.Currency, &p.AllocationPercent, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateProvince(ctx context.Context, p *Province) error {
	res, err := s.db.ExecContext(ctx,
		`update provinces set name=$2, region=$3, currency=$4, allocation_percent=$5, updated_at=now()
		 where id=$1`,
		p.ID, p.Name, p.Region, p.Currency, p.AllocationPercent,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return affectedOrNotFound(res)
}

func (s *PGStore) DeleteProvince(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from provinces where id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// Departments.

func (s *PGStore) CreateDepartment(ctx context.Context, d *Department) error {
	if d.ID == "" {
		d.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into departments(id, name, description, budget_allocated, budget_spent)
		 values($1,$2,$3,$4,$5)`,
		d.ID, d.Name, d.Description, d.BudgetAllocated, d.BudgetSpent,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PGStore) FindDepartment(ctx context.Context, id string) (*Department, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, description, budget_allocated, budget_spent, created_at, updated_at
		 from departments where id=$1`, id)
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.BudgetAllocated, &d.BudgetSpent, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFoundOrErr(err)
	}
	return &d, nil
}

func (s *PGStore) ListDepartments(ctx context.Context) ([]*Department, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, description, budget_allocated, budget_spent, created_at, updated_at
		 from departments order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.BudgetAllocated, &d.BudgetSpent, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateDepartment(ctx context.Context, d *Department) error {
	res, err := s.db.ExecContext(ctx,
		`update departments set name=$2, description=$3, budget_allocated=$4, budget_spent=$5, updated_at=now()
		 where id=$1`,
		d.ID, d.Name, d.Description, d.BudgetAllocated, d.BudgetSpent,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return affectedOrNotFound(res)
}

func (s *PGStore) DeleteDepartment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from departments where id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// Projects.

func (s *PGStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into projects(id, name, type, province_id, status, start_date, end_date)
		 values($1,$2,$3,nullif($4,''),$5,$6,$7)`,
		p.ID, p.Name, p.Type, p.ProvinceID, string(p.Status), p.StartDate, p.EndDate,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PGStore) FindProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, type, coalesce(province_id,''), status, start_date, end_date, created_at, updated_at
		 from projects where id=$1`, id)
	return scanProject(row)
}

func (s *PGStore) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, type, coalesce(province_id,''), status, start_date, end_date, created_at, updated_at
		 from projects order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateProject(ctx context.Context, p *Project) error {
	res, err := s.db.ExecContext(ctx,
		`update projects set name=$2, type=$3, province_id=nullif($4,''), status=$5,
		 start_date=$6, end_date=$7, updated_at=now() where id=$1`,
		p.ID, p.Name, p.Type, p.ProvinceID, string(p.Status), p.StartDate, p.EndDate,
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *PGStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from projects where id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var (
		p          Project
		start, end sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.ProvinceID, &p.Status, &start, &end, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFoundOrErr(err)
	}
	if start.Valid {
		t := start.Time
		p.StartDate = &t
	}
	if end.Valid {
		t := end.Time
		p.EndDate = &t
	}
	return &p, nil
}

// Obligations.

func (s *PGStore) CreateObligation(ctx context.Context, o *Obligation) error {
	if o.ID == "" {
		o.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into obligations(id, description, amount, due_date, status, project_id)
		 values($1,$2,$3,$4,$5,nullif($6,''))`,
		o.ID, o.Description, o.Amount, o.DueDate, string(o.Status), o.ProjectID,
	)
	return err
}

const obligationSelect = `select id, description, amount, due_date, status,
	coalesce(project_id,''), created_at, updated_at from obligations`

func (s *PGStore) FindObligation(ctx context.Context, id string) (*Obligation, error) {
	row := s.db.QueryRowContext(ctx, obligationSelect+` where id=$1`, id)
	return scanObligation(row)
}

func (s *PGStore) ListObligations(ctx context.Context) ([]*Obligation, error) {
	rows, err := s.db.QueryContext(ctx, obligationSelect+` order by due_date, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateObligation(ctx context.Context, o *Obligation) error {
	res, err := s.db.ExecContext(ctx,
		`update obligations set description=$2, amount=$3, due_date=$4, status=$5,
		 project_id=nullif($6,''), updated_at=now() where id=$1`,
		o.ID, o.Description, o.Amount, o.DueDate, string(o.Status), o.ProjectID,
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *PGStore) DeleteObligation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from obligations where id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func scanObligation(row rowScanner) (*Obligation, error) {
	var o Obligation
	err := row.Scan(&o.ID, &o.Description, &o.Amount, &o.DueDate, &o.Status,
		&o.ProjectID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFoundOrErr(err)
	}
	return &o, nil
}

// Budgets.

func (s *PGStore) CreateBudget(ctx context.Context, b *Budget) error {
	if b.ID == "" {
		b.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into budgets(id, year, department_id, allocated_amount, actual_spent)
		 values($1,$2,$3,$4,$5)`,
		b.ID, b.Year, b.DepartmentID, b.AllocatedAmount, b.ActualSpent,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PGStore) FindBudget(ctx context.Context, id string) (*Budget, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, year, department_id, allocated_amount, actual_spent, created_at, updated_at
		 from budgets where id=$1`, id)
	var b Budget
	err := row.Scan(&b.ID, &b.Year, &b.DepartmentID, &b.AllocatedAmount, &b.ActualSpent, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFoundOrErr(err)
	}
	return &b, nil
}

func (s *PGStore) ListBudgets(ctx context.Context, year int) ([]*Budget, error) {
	query := `select id, year, department_id, allocated_amount, actual_spent, created_at, updated_at
		 from budgets`
	var args []any
	if year > 0 {
		query += ` where year=$1`
		args = append(args, year)
	}
	query += ` order by year desc, department_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.Year, &b.DepartmentID, &b.AllocatedAmount, &b.ActualSpent, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateBudget(ctx context.Context, b *Budget) error {
	res, err := s.db.ExecContext(ctx,
		`update budgets set allocated_amount=$2, actual_spent=$3, updated_at=now() where id=$1`,
		b.ID, b.AllocatedAmount, b.ActualSpent,
	)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// Transactions.

func (s *PGStore) CreateTransaction(ctx context.Context, t *Transaction) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into transactions(id, date, type, amount, description, category,
		 project_id, department_id, province_id, created_by, approved_by)
		 values($1,$2,$3,$4,$5,$6,nullif($7,''),nullif($8,''),nullif($9,''),nullif($10,''),nullif($11,''))`,
		t.ID, t.Date, string(t.Type), t.Amount, t.Description, t.Category,
		t.ProjectID, t.DepartmentID, t.ProvinceID, t.CreatedBy, t.ApprovedBy,
	)
	return err
}

func (s *PGStore) FindTransaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx, transactionSelect+` where id=$1`, id)
	return scanTransaction(row)
}

const transactionSelect = `select id, date, type, amount, description, category,
	coalesce(project_id,''), coalesce(department_id,''), coalesce(province_id,''),
	coalesce(created_by,''), coalesce(approved_by,''), created_at
	from transactions`

func (s *PGStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error) {
	query := transactionSelect
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Type != "" {
		add("type=$%d", string(filter.Type))
	}
	if filter.ProvinceID != "" {
		add("province_id=$%d", filter.ProvinceID)
	}
	if filter.DepartmentID != "" {
		add("department_id=$%d", filter.DepartmentID)
	}
	if filter.ProjectID != "" {
		add("project_id=$%d", filter.ProjectID)
	}
	if len(clauses) > 0 {
		query += " where " + strings.Join(clauses, " and ")
	}
	query += " order by date desc, created_at desc"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" limit $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from transactions where id=$1`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Date, &t.Type, &t.Amount, &t.Description, &t.Category,
		&t.ProjectID, &t.DepartmentID, &t.ProvinceID, &t.CreatedBy, &t.ApprovedBy, &t.CreatedAt)
	if err != nil {
		return nil, notFoundOrErr(err)
	}
	return &t, nil
}
