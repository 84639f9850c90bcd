package catalog

// defaultDatasets is the curated metric table for phase 1. Column names match
// the OWID energy dataset; adding a metric is a data change here, not a code
// change anywhere else.
var defaultDatasets = map[string][]MetricSpec{
	DatasetOWIDEnergy: {
		{
			ID:          "energy_per_capita",
			Column:      "energy_per_capita",
			Unit:        "kWh per person per year",
			Description: "Primary energy consumption per capita.",
			Category:    "consumption",
		},
		{
			ID:          "primary_energy_consumption",
			Column:      "primary_energy_consumption",
			Unit:        "TWh per year",
			Description: "Total primary energy consumption.",
			Category:    "consumption",
		},
		{
			ID:          "renewables_share_energy",
			Column:      "renewables_share_energy",
			Unit:        "percent of primary energy",
			Description: "Share of primary energy from renewables.",
			Category:    "energy_mix",
		},
		{
			ID:          "fossil_share_energy",
			Column:      "fossil_share_energy",
			Unit:        "percent of primary energy",
			Description: "Share of primary energy from fossil fuels.",
			Category:    "energy_mix",
		},
		{
			ID:          "coal_share_energy",
			Column:      "coal_share_energy",
			Unit:        "percent of primary energy",
			Description: "Share of primary energy from coal.",
			Category:    "energy_mix",
		},
		{
			ID:          "oil_share_energy",
			Column:      "oil_share_energy",
			Unit:        "percent of primary energy",
			Description: "Share of primary energy from oil.",
			Category:    "energy_mix",
		},
		{
			ID:          "gas_share_energy",
			Column:      "gas_share_energy",
			Unit:        "percent of primary energy",
			Description: "Share of primary energy from gas.",
			Category:    "energy_mix",
		},
		{
			ID:          "nuclear_share_energy",
			Column:      "nuclear_share_energy",
			Unit:        "percent of primary energy",
			Description: "Share of primary energy from nuclear.",
			Category:    "energy_mix",
		},
		{
			ID:          "solar_share_elec",
			Column:      "solar_share_elec",
			Unit:        "percent of electricity generation",
			Description: "Share of electricity generation from solar.",
			Category:    "electricity_mix",
		},
		{
			ID:          "wind_share_elec",
			Column:      "wind_share_elec",
			Unit:        "percent of electricity generation",
			Description: "Share of electricity generation from wind.",
			Category:    "electricity_mix",
		},
		{
			ID:          "hydro_share_elec",
			Column:      "hydro_share_elec",
			Unit:        "percent of electricity generation",
			Description: "Share of electricity generation from hydro.",
			Category:    "electricity_mix",
		},
	},
}

// Default returns the built-in catalog. Callers that need different data
// inject their own via New; nothing in this package reads Default implicitly.
func Default() *Catalog {
	c, err := New(defaultDatasets)
	if err != nil {
		panic(err)
	}
	return c
}
