// Package marketplace is the data collaborator behind the live copilot:
// projects, the material catalog, and the expense ledger for a
// contractor working the BuildLink marketplace.
//
// It owns no session logic. The copilot reaches it exclusively through
// the tool set returned by Service.Tools.
package marketplace

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/buildlink-za/sitevoice/pkg/store"
)

// Project is a contractor's job site.
type Project struct {
	ID          string    `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	Site        string    `json:"site" msgpack:"site"`
	BudgetCents int64     `json:"budget_cents" msgpack:"budget_cents"`
	CreatedAt   time.Time `json:"created_at" msgpack:"created_at"`
}

// Material is a catalog listing from a supplier.
type Material struct {
	SKU            string `json:"sku" msgpack:"sku"`
	Name           string `json:"name" msgpack:"name"`
	Category       string `json:"category" msgpack:"category"`
	Supplier       string `json:"supplier" msgpack:"supplier"`
	UnitPriceCents int64  `json:"unit_price_cents" msgpack:"unit_price_cents"`
	Unit           string `json:"unit" msgpack:"unit"`
}

// Expense is a ledger entry against a project.
type Expense struct {
	ID          string    `json:"id" msgpack:"id"`
	ProjectID   string    `json:"project_id" msgpack:"project_id"`
	Description string    `json:"description" msgpack:"description"`
	AmountCents int64     `json:"amount_cents" msgpack:"amount_cents"`
	LoggedAt    time.Time `json:"logged_at" msgpack:"logged_at"`
}

// Service exposes the marketplace records over a KV backend.
type Service struct {
	projects *store.Bucket[Project]
	catalog  *store.Bucket[Material]
	expenses *store.Bucket[Expense]

	now func() time.Time
}

// New creates a Service over the given backend.
func New(kv store.KV) *Service {
	return &Service{
		projects: store.NewBucket[Project](kv, "projects"),
		catalog:  store.NewBucket[Material](kv, "catalog"),
		expenses: store.NewBucket[Expense](kv, "expenses"),
		now:      time.Now,
	}
}

// AddProject stores a project, assigning an id when absent.
func (s *Service) AddProject(ctx context.Context, p Project) (Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if err := s.projects.Put(ctx, p.ID, p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// AddMaterial stores a catalog listing keyed by SKU.
func (s *Service) AddMaterial(ctx context.Context, m Material) error {
	if m.SKU == "" {
		return fmt.Errorf("marketplace: material needs a SKU")
	}
	return s.catalog.Put(ctx, m.SKU, m)
}

// ListProjects returns all projects, newest first.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	for p, err := range s.projects.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SearchCatalog returns up to limit materials whose name or category
// contains the query, case-insensitively. A non-empty category narrows
// the search to that category.
func (s *Service) SearchCatalog(ctx context.Context, query, category string, limit int) ([]Material, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(strings.TrimSpace(query))
	cat := strings.ToLower(strings.TrimSpace(category))
	var out []Material
	for m, err := range s.catalog.All(ctx) {
		if err != nil {
			return nil, err
		}
		if cat != "" && strings.ToLower(m.Category) != cat {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Name), q) &&
			!strings.Contains(strings.ToLower(m.Category), q) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordExpense appends a ledger entry to an existing project.
func (s *Service) RecordExpense(ctx context.Context, projectID, description string, amountCents int64) (Expense, error) {
	if amountCents <= 0 {
		return Expense{}, fmt.Errorf("marketplace: amount must be positive, got %d", amountCents)
	}
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return Expense{}, fmt.Errorf("marketplace: project %s: %w", projectID, err)
	}
	e := Expense{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Description: description,
		AmountCents: amountCents,
		LoggedAt:    s.now(),
	}
	if err := s.expenses.Put(ctx, e.ID, e); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// ProjectExpenses returns the ledger entries for a project, oldest first.
func (s *Service) ProjectExpenses(ctx context.Context, projectID string) ([]Expense, error) {
	var out []Expense
	for e, err := range s.expenses.All(ctx) {
		if err != nil {
			return nil, err
		}
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedAt.Before(out[j].LoggedAt) })
	return out, nil
}

// FormatRand renders cents as a rand amount, e.g. "R 1 234.56".
func FormatRand(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var sb strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteRune(d)
	}
	out := fmt.Sprintf("R %s.%02d", sb.String(), frac)
	if neg {
		return "-" + out
	}
	return out
}
