package marketplace

import (
	"context"
	"fmt"

	"github.com/buildlink-za/sitevoice/pkg/tool"
)

type searchCatalogArgs struct {
	Query    string `json:"query" jsonschema:"material name or keyword to search for"`
	Category string `json:"category,omitempty" jsonschema:"optional category filter, e.g. cement, timber, steel"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

type listProjectsArgs struct{}

type recordExpenseArgs struct {
	ProjectID   string `json:"project_id" jsonschema:"id of the project to charge"`
	Description string `json:"description" jsonschema:"what the money was spent on"`
	AmountCents int64  `json:"amount_cents" jsonschema:"amount in South African cents, e.g. R125.50 is 12550"`
}

// Tools returns the copilot tool set bound to this service.
func (s *Service) Tools() []*tool.Tool {
	return []*tool.Tool{
		tool.MustNew("search_catalog",
			"Search the marketplace material catalog by name and category.",
			func(ctx context.Context, a searchCatalogArgs) (any, error) {
				return s.SearchCatalog(ctx, a.Query, a.Category, a.Limit)
			}),

		tool.MustNew("list_projects",
			"List the contractor's projects with their sites and budgets.",
			func(ctx context.Context, _ listProjectsArgs) (any, error) {
				return s.ListProjects(ctx)
			}),

		tool.MustNew("record_expense",
			"Record an expense against a project in the site ledger.",
			func(ctx context.Context, a recordExpenseArgs) (any, error) {
				e, err := s.RecordExpense(ctx, a.ProjectID, a.Description, a.AmountCents)
				if err != nil {
					return nil, err
				}
				return tool.Result{
					Payload: e,
					Alert: &tool.Alert{
						Title: "Expense logged",
						Body:  fmt.Sprintf("%s: %s", e.Description, FormatRand(e.AmountCents)),
						Kind:  "success",
					},
				}, nil
			}),
	}
}
