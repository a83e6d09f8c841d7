package energy

// Config holds the power model and budget parameters.
// Units:
//   - MaxBudget: Wh released per budget period at fraction 1.0
//   - BudgetFraction: share of MaxBudget actually granted [0..1]
//   - PowerComp: Watts drawn by one computing host
//   - PowerIdle: Watts drawn by one idle host
//   - PeriodDuration: budget period length in simulated seconds
type Config struct {
	MaxBudget      float64
	BudgetFraction float64
	PowerComp      float64
	PowerIdle      float64
	PeriodDuration float64
}

// _defaultConfig returns a Config pre-filled with the reference platform
// coefficients.
func _defaultConfig() *Config {
	return &Config{
		MaxBudget:      1500.8, // Wh per period
		BudgetFraction: 1.0,    // full budget
		PowerComp:      203.12, // W per computing host
		PowerIdle:      100.0,  // W per idle host
		PeriodDuration: 600,    // 10 min
	}
}
