package constant

const (
	DevelopmentEnvironment = "development"
	ProductionEnvironment  = "production"
)

const (
	ExchangeModePaper = "paper"
	ExchangeModeLive  = "live"
)
