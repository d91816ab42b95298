package config

type App struct {
	Port          string  `yaml:"port" env:"APP_PORT" default:"8080"`
	DatabaseURL   string  `yaml:"database_url" env:"DATABASE_URL,required"`
	JWTSecret     string  `yaml:"jwt_secret" env:"JWT_SECRET,required"`
	Env           string  `yaml:"env" env:"APP_ENV" default:"dev"`
	BillingPolicy string  `yaml:"billing_policy" env:"BILLING_POLICY" default:"linear"`
	TaxPercent    float64 `yaml:"tax_percent" env:"TAX_PERCENT" default:"0"`
}
