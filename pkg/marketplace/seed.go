package marketplace

import "context"

// Seed loads demo data: two projects and a small supplier catalog.
// Intended for the CLI's first run and for examples; idempotent on SKU
// and project id.
func (s *Service) Seed(ctx context.Context) error {
	projects := []Project{
		{ID: "proj-khayelitsha", Name: "Khayelitsha housing phase 2", Site: "Cape Town", BudgetCents: 185_000_000},
		{ID: "proj-soweto-clinic", Name: "Soweto clinic refurbishment", Site: "Johannesburg", BudgetCents: 42_500_000},
	}
	for _, p := range projects {
		if _, err := s.AddProject(ctx, p); err != nil {
			return err
		}
	}

	materials := []Material{
		{SKU: "cem-42n-50", Name: "Cement 42.5N 50kg", Category: "cement", Supplier: "PPC", UnitPriceCents: 11550, Unit: "bag"},
		{SKU: "cem-32n-50", Name: "Cement 32.5N 50kg", Category: "cement", Supplier: "AfriSam", UnitPriceCents: 9895, Unit: "bag"},
		{SKU: "reb-y12-6m", Name: "Rebar Y12 6m", Category: "steel", Supplier: "Macsteel", UnitPriceCents: 18950, Unit: "length"},
		{SKU: "tim-pine-38x114", Name: "SA pine 38x114 CCA", Category: "timber", Supplier: "Lumber City", UnitPriceCents: 8725, Unit: "metre"},
		{SKU: "brk-clay-stock", Name: "Clay stock brick", Category: "masonry", Supplier: "Corobrik", UnitPriceCents: 285, Unit: "brick"},
		{SKU: "san-plaster-m3", Name: "Plaster sand", Category: "aggregate", Supplier: "Lafarge", UnitPriceCents: 48500, Unit: "m3"},
	}
	for _, m := range materials {
		if err := s.AddMaterial(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
