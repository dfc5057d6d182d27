package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parishledger.org/internal/audit"
	"parishledger.org/internal/auth"
	"parishledger.org/internal/finance"
)

// Role policy for finance records: anyone authenticated may read, writes are
// for the finance officers, deletes are Admin-only.
var writeRoles = []auth.Role{auth.RoleAdmin, auth.RoleFinanceChair, auth.RoleTreasurer}

func resourceID(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimSuffix(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func handleFinanceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, finance.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, finance.ErrDuplicate):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, finance.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// --- Provinces ---

type provinceRequest struct {
	Name              string  `json:"name"`
	Region            string  `json:"region"`
	Currency          string  `json:"currency"`
	AllocationPercent float64 `json:"allocation_percent"`
}

func (req provinceRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if len(req.Currency) != 3 {
		return errors.New("currency must be a 3-letter code")
	}
	if req.AllocationPercent < 0 || req.AllocationPercent > 100 {
		return errors.New("allocation_percent must be between 0 and 100")
	}
	return nil
}

func (a *API) handleProvincesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.finance.ListProvinces(r.Context())
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req provinceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p := &finance.Province{
			Name:              strings.TrimSpace(req.Name),
			Region:            strings.TrimSpace(req.Region),
			Currency:          strings.ToUpper(req.Currency),
			AllocationPercent: req.AllocationPercent,
		}
		if err := a.finance.CreateProvince(r.Context(), p); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.province.created", map[string]any{"id": p.ID, "name": p.Name})
		writeJSON(w, http.StatusCreated, p)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProvinceResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r.URL.Path, "/api/v1/provinces/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := a.finance.FindProvince(r.Context(), id)
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req provinceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p := &finance.Province{
			ID:                id,
			Name:              strings.TrimSpace(req.Name),
			Region:            strings.TrimSpace(req.Region),
			Currency:          strings.ToUpper(req.Currency),
			AllocationPercent: req.AllocationPercent,
		}
		if err := a.finance.UpdateProvince(r.Context(), p); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		if err := a.finance.DeleteProvince(r.Context(), id); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.province.deleted", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// --- Departments ---

type departmentRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	BudgetAllocated int64  `json:"budget_allocated"`
	BudgetSpent     int64  `json:"budget_spent"`
}

func (req departmentRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}
	if req.BudgetAllocated < 0 || req.BudgetSpent < 0 {
		return errors.New("budget amounts must be >= 0")
	}
	return nil
}

func (a *API) handleDepartmentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.finance.ListDepartments(r.Context())
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req departmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		d := &finance.Department{
			Name:            strings.TrimSpace(req.Name),
			Description:     strings.TrimSpace(req.Description),
			BudgetAllocated: req.BudgetAllocated,
			BudgetSpent:     req.BudgetSpent,
		}
		if err := a.finance.CreateDepartment(r.Context(), d); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.department.created", map[string]any{"id": d.ID, "name": d.Name})
		writeJSON(w, http.StatusCreated, d)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleDepartmentResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r.URL.Path, "/api/v1/departments/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		d, err := a.finance.FindDepartment(r.Context(), id)
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodPut:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req departmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		d := &finance.Department{
			ID:              id,
			Name:            strings.TrimSpace(req.Name),
			Description:     strings.TrimSpace(req.Description),
			BudgetAllocated: req.BudgetAllocated,
			BudgetSpent:     req.BudgetSpent,
		}
		if err := a.finance.UpdateDepartment(r.Context(), d); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodDelete:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		if err := a.finance.DeleteDepartment(r.Context(), id); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.department.deleted", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// --- Projects ---

type projectRequest struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	ProvinceID string     `json:"province_id"`
	Status     string     `json:"status"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
}

func (req projectRequest) toProject(id string) (*finance.Project, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("name is required")
	}
	status := finance.ProjectPlanned
	if strings.TrimSpace(req.Status) != "" {
		parsed, ok := finance.ParseProjectStatus(req.Status)
		if !ok {
			return nil, errors.New("unknown project status")
		}
		status = parsed
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, errors.New("end_date must not precede start_date")
	}
	return &finance.Project{
		ID:         id,
		Name:       strings.TrimSpace(req.Name),
		Type:       strings.TrimSpace(req.Type),
		ProvinceID: strings.TrimSpace(req.ProvinceID),
		Status:     status,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}, nil
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.finance.ListProjects(r.Context())
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req projectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := req.toProject("")
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.finance.CreateProject(r.Context(), p); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.project.created", map[string]any{"id": p.ID, "name": p.Name})
		writeJSON(w, http.StatusCreated, p)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r.URL.Path, "/api/v1/projects/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := a.finance.FindProject(r.Context(), id)
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req projectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := req.toProject(id)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.finance.UpdateProject(r.Context(), p); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		if err := a.finance.DeleteProject(r.Context(), id); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.project.deleted", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// --- Obligations ---

type obligationRequest struct {
	Description string     `json:"description"`
	Amount      int64      `json:"amount"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `json:"status"`
	ProjectID   string     `json:"project_id"`
}

func (req obligationRequest) toObligation(id string) (*finance.Obligation, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, errors.New("description is required")
	}
	if req.Amount <= 0 {
		return nil, errors.New("amount must be > 0")
	}
	if req.DueDate == nil {
		return nil, errors.New("due_date is required")
	}
	status := finance.ObligationPending
	if strings.TrimSpace(req.Status) != "" {
		parsed, ok := finance.ParseObligationStatus(req.Status)
		if !ok {
			return nil, errors.New("unknown obligation status")
		}
		status = parsed
	}
	return &finance.Obligation{
		ID:          id,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		DueDate:     req.DueDate.UTC(),
		Status:      status,
		ProjectID:   strings.TrimSpace(req.ProjectID),
	}, nil
}

func (a *API) handleObligationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.finance.ListObligations(r.Context())
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req obligationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		o, err := req.toObligation("")
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.finance.CreateObligation(r.Context(), o); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.obligation.created", map[string]any{
			"id": o.ID, "amount": o.Amount, "due_date": o.DueDate,
		})
		writeJSON(w, http.StatusCreated, o)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleObligationResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r.URL.Path, "/api/v1/obligations/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		o, err := a.finance.FindObligation(r.Context(), id)
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case http.MethodPut:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req obligationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		o, err := req.toObligation(id)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.finance.UpdateObligation(r.Context(), o); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case http.MethodDelete:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		if err := a.finance.DeleteObligation(r.Context(), id); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.obligation.deleted", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// --- Budgets ---

type budgetRequest struct {
	Year            int    `json:"year"`
	DepartmentID    string `json:"department_id"`
	AllocatedAmount int64  `json:"allocated_amount"`
	ActualSpent     int64  `json:"actual_spent"`
}

func (req budgetRequest) validate() error {
	if req.Year < 2000 || req.Year > 2200 {
		return errors.New("year is out of range")
	}
	if strings.TrimSpace(req.DepartmentID) == "" {
		return errors.New("department_id is required")
	}
	if req.AllocatedAmount < 0 || req.ActualSpent < 0 {
		return errors.New("amounts must be >= 0")
	}
	return nil
}

func (a *API) handleBudgetsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		year := 0
		if raw := r.URL.Query().Get("year"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "year must be an integer")
				return
			}
			year = parsed
		}
		items, err := a.finance.ListBudgets(r.Context(), year)
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req budgetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		b := &finance.Budget{
			Year:            req.Year,
			DepartmentID:    strings.TrimSpace(req.DepartmentID),
			AllocatedAmount: req.AllocatedAmount,
			ActualSpent:     req.ActualSpent,
		}
		if err := a.finance.CreateBudget(r.Context(), b); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.budget.created", map[string]any{
			"id": b.ID, "year": b.Year, "department_id": b.DepartmentID,
		})
		writeJSON(w, http.StatusCreated, b)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleBudgetResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r.URL.Path, "/api/v1/budgets/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		b, err := a.finance.FindBudget(r.Context(), id)
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	case http.MethodPut:
		if !a.requireRole(w, r, writeRoles...) {
			return
		}
		var req budgetRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.AllocatedAmount < 0 || req.ActualSpent < 0 {
			writeError(w, r, http.StatusBadRequest, "amounts must be >= 0")
			return
		}
		b := &finance.Budget{
			ID:              id,
			AllocatedAmount: req.AllocatedAmount,
			ActualSpent:     req.ActualSpent,
		}
		if err := a.finance.UpdateBudget(r.Context(), b); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		updated, err := a.finance.FindBudget(r.Context(), id)
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

// --- Transactions ---

type transactionRequest struct {
	Date         *time.Time `json:"date"`
	Type         string     `json:"type"`
	Amount       int64      `json:"amount"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	ProjectID    string     `json:"project_id"`
	DepartmentID string     `json:"department_id"`
	ProvinceID   string     `json:"province_id"`
}

func (a *API) handleTransactionsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listTransactions(w, r)
	case http.MethodPost:
		a.createTransaction(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := finance.TransactionFilter{
		ProvinceID:   q.Get("province_id"),
		DepartmentID: q.Get("department_id"),
		ProjectID:    q.Get("project_id"),
	}
	if raw := q.Get("type"); raw != "" {
		typ, ok := finance.ParseTransactionType(raw)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "unknown transaction type")
			return
		}
		filter.Type = typ
	}
	limit, err := parsePositiveInt(q.Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = limit

	items, err := a.finance.ListTransactions(r.Context(), filter)
	if err != nil {
		handleFinanceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) createTransaction(w http.ResponseWriter, r *http.Request) {
	if !a.requireRole(w, r, writeRoles...) {
		return
	}
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	typ, ok := finance.ParseTransactionType(req.Type)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown transaction type")
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be > 0")
		return
	}
	date := time.Now().UTC()
	if req.Date != nil {
		date = req.Date.UTC()
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	t := &finance.Transaction{
		Date:         date,
		Type:         typ,
		Amount:       req.Amount,
		Description:  strings.TrimSpace(req.Description),
		Category:     strings.TrimSpace(req.Category),
		ProjectID:    strings.TrimSpace(req.ProjectID),
		DepartmentID: strings.TrimSpace(req.DepartmentID),
		ProvinceID:   strings.TrimSpace(req.ProvinceID),
		CreatedBy:    identity.UserID,
	}
	if err := a.finance.CreateTransaction(r.Context(), t); err != nil {
		handleFinanceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "finance.transaction.created", map[string]any{
		"id": t.ID, "type": string(t.Type), "amount": t.Amount,
	})
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) handleTransactionResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r.URL.Path, "/api/v1/transactions/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		t, err := a.finance.FindTransaction(r.Context(), id)
		if err != nil {
			handleFinanceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		if err := a.finance.DeleteTransaction(r.Context(), id); err != nil {
			handleFinanceError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "finance.transaction.deleted", map[string]any{"id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}
