package finance

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreDepartmentNameConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateDepartment(ctx, &Department{Name: "Missions"}); err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	err := s.CreateDepartment(ctx, &Department{Name: "missions"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemoryStoreBudgetYearDepartmentConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	b := &Budget{Year: 2026, DepartmentID: "dep-1", AllocatedAmount: 100}
	if err := s.CreateBudget(ctx, b); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	err := s.CreateBudget(ctx, &Budget{Year: 2026, DepartmentID: "dep-1"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := s.CreateBudget(ctx, &Budget{Year: 2027, DepartmentID: "dep-1"}); err != nil {
		t.Fatalf("different year must not conflict: %v", err)
	}

	listed, err := s.ListBudgets(ctx, 2026)
	if err != nil {
		t.Fatalf("ListBudgets: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != b.ID {
		t.Fatalf("year filter broken: %+v", listed)
	}
}

func TestMemoryStoreTransactionFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	txs := []*Transaction{
		{Date: base, Type: TransactionReceipt, Amount: 100, DepartmentID: "dep-1"},
		{Date: base.AddDate(0, 0, 1), Type: TransactionExpense, Amount: 50, DepartmentID: "dep-1"},
		{Date: base.AddDate(0, 0, 2), Type: TransactionReceipt, Amount: 75, DepartmentID: "dep-2"},
	}
	for _, tx := range txs {
		if err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	got, err := s.ListTransactions(ctx, TransactionFilter{Type: TransactionReceipt})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(got))
	}
	if !got[0].Date.After(got[1].Date) {
		t.Fatal("expected newest-first ordering")
	}

	got, err = s.ListTransactions(ctx, TransactionFilter{DepartmentID: "dep-1", Limit: 1})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 1 || got[0].Type != TransactionExpense {
		t.Fatalf("department filter with limit broken: %+v", got)
	}
}

func TestMemoryStoreUpdateBudgetPreservesKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	b := &Budget{Year: 2026, DepartmentID: "dep-1", AllocatedAmount: 100}
	if err := s.CreateBudget(ctx, b); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	if err := s.UpdateBudget(ctx, &Budget{ID: b.ID, AllocatedAmount: 250, ActualSpent: 40}); err != nil {
		t.Fatalf("UpdateBudget: %v", err)
	}
	got, err := s.FindBudget(ctx, b.ID)
	if err != nil {
		t.Fatalf("FindBudget: %v", err)
	}
	if got.Year != 2026 || got.DepartmentID != "dep-1" {
		t.Fatalf("update must not change year/department: %+v", got)
	}
	if got.AllocatedAmount != 250 || got.ActualSpent != 40 {
		t.Fatalf("amounts not updated: %+v", got)
	}
}

func TestMemoryStoreObligationLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	due := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	later := &Obligation{Description: "Roof contractor final payment", Amount: 150_000, DueDate: due.AddDate(0, 1, 0), Status: ObligationPending}
	sooner := &Obligation{Description: "Insurance premium", Amount: 40_000, DueDate: due, Status: ObligationPending}
	for _, o := range []*Obligation{later, sooner} {
		if err := s.CreateObligation(ctx, o); err != nil {
			t.Fatalf("CreateObligation: %v", err)
		}
	}

	listed, err := s.ListObligations(ctx)
	if err != nil {
		t.Fatalf("ListObligations: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != sooner.ID {
		t.Fatalf("expected earliest due date first: %+v", listed)
	}

	sooner.Status = ObligationCompleted
	if err := s.UpdateObligation(ctx, sooner); err != nil {
		t.Fatalf("UpdateObligation: %v", err)
	}
	got, err := s.FindObligation(ctx, sooner.ID)
	if err != nil {
		t.Fatalf("FindObligation: %v", err)
	}
	if got.Status != ObligationCompleted {
		t.Fatalf("status not updated: %+v", got)
	}

	if err := s.DeleteObligation(ctx, later.ID); err != nil {
		t.Fatalf("DeleteObligation: %v", err)
	}
	if _, err := s.FindObligation(ctx, later.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestParseObligationStatus(t *testing.T) {
	for raw, want := range map[string]ObligationStatus{
		"Pending":   ObligationPending,
		"completed": ObligationCompleted,
		" OVERDUE ": ObligationOverdue,
	} {
		got, ok := ParseObligationStatus(raw)
		if !ok || got != want {
			t.Fatalf("ParseObligationStatus(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := ParseObligationStatus("settled"); ok {
		t.Fatal("unknown status must not parse")
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.FindProvince(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseTransactionType(t *testing.T) {
	for raw, want := range map[string]TransactionType{
		"receipt":  TransactionReceipt,
		"Expense":  TransactionExpense,
		" TRANSFER ": TransactionTransfer,
	} {
		got, ok := ParseTransactionType(raw)
		if !ok || got != want {
			t.Fatalf("ParseTransactionType(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := ParseTransactionType("donation"); ok {
		t.Fatal("unknown type must not parse")
	}
}
