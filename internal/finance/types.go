package finance

import (
	"errors"
	"strings"
	"time"
)

// Monetary amounts are minor units (cents). No floats.

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionReceipt  TransactionType = "receipt"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
)

// ParseTransactionType maps a string onto a known transaction type.
func ParseTransactionType(raw string) (TransactionType, bool) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(raw))) {
	case TransactionReceipt:
		return TransactionReceipt, true
	case TransactionExpense:
		return TransactionExpense, true
	case TransactionTransfer:
		return TransactionTransfer, true
	}
	return "", false
}

// ProjectStatus tracks a project through its lifecycle.
type ProjectStatus string

const (
	ProjectPlanned   ProjectStatus = "Planned"
	ProjectActive    ProjectStatus = "Active"
	ProjectCompleted ProjectStatus = "Completed"
	ProjectOnHold    ProjectStatus = "On Hold"
)

// ParseProjectStatus maps a string onto a known project status.
func ParseProjectStatus(raw string) (ProjectStatus, bool) {
	for _, s := range []ProjectStatus{ProjectPlanned, ProjectActive, ProjectCompleted, ProjectOnHold} {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, true
		}
	}
	return "", false
}

// Province is a regional unit of the organization.
type Province struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Region            string    `json:"region,omitempty"`
	Currency          string    `json:"currency"`
	AllocationPercent float64   `json:"allocation_percent"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Department is an organizational unit holding a budget.
type Department struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	BudgetAllocated int64     `json:"budget_allocated"`
	BudgetSpent     int64     `json:"budget_spent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Project is a funded initiative, optionally tied to a province.
type Project struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Type       string        `json:"type,omitempty"`
	ProvinceID string        `json:"province_id,omitempty"`
	Status     ProjectStatus `json:"status"`
	StartDate  *time.Time    `json:"start_date,omitempty"`
	EndDate    *time.Time    `json:"end_date,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ObligationStatus tracks a payable until it is settled.
type ObligationStatus string

const (
	ObligationPending   ObligationStatus = "Pending"
	ObligationCompleted ObligationStatus = "Completed"
	ObligationOverdue   ObligationStatus = "Overdue"
)

// ParseObligationStatus maps a string onto a known obligation status.
func ParseObligationStatus(raw string) (ObligationStatus, bool) {
	for _, s := range []ObligationStatus{ObligationPending, ObligationCompleted, ObligationOverdue} {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, true
		}
	}
	return "", false
}

// Obligation is a committed payable with a due date, optionally tied to a
// project.
type Obligation struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Amount      int64            `json:"amount"`
	DueDate     time.Time        `json:"due_date"`
	Status      ObligationStatus `json:"status"`
	ProjectID   string           `json:"project_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Budget is a yearly allocation for one department. Unique per (year,
// department).
type Budget struct {
	ID              string    `json:"id"`
	Year            int       `json:"year"`
	DepartmentID    string    `json:"department_id"`
	AllocatedAmount int64     `json:"allocated_amount"`
	ActualSpent     int64     `json:"actual_spent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID           string          `json:"id"`
	Date         time.Time       `json:"date"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category,omitempty"`
	ProjectID    string          `json:"project_id,omitempty"`
	DepartmentID string          `json:"department_id,omitempty"`
	ProvinceID   string          `json:"province_id,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`
	ApprovedBy   string          `json:"approved_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	Type         TransactionType
	ProvinceID   string
	DepartmentID string
	ProjectID    string
	Limit        int
}

var (
	ErrNotFound     = errors.New("finance: not found")
	ErrDuplicate    = errors.New("finance: already exists")
	ErrInvalidInput = errors.New("finance: invalid input")
)
