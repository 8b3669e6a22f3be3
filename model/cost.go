package model

// ServiceSpend is actual billed spend for one service line.
type ServiceSpend struct {
	Service string
	Amount  float64
	Unit    string
}

// SpendReport is month-to-date billed spend, used to sanity-check the static
// price table against reality.
type SpendReport struct {
	Start    string
	End      string
	Services []ServiceSpend
	Total    float64
}

// CostEstimate is the engine's own accrual estimate for one instance.
type CostEstimate struct {
	InstanceID   string
	InstanceType string
	Owner        User
	RunningDays  int
	HourlyRate   float64
	AccruedUSD   float64
}
