package config

import (
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load builds the app config. A YAML file named by CONFIG_FILE seeds
// the values; environment variables win over the file.
func Load() App {
	var cfg App
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			slog.Error("config file read failed", "path", path, "err", err)
			panic("cannot read config file " + path)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			slog.Error("config file parse failed", "path", path, "err", err)
			panic("cannot parse config file " + path)
		}
	}

	cfg.Port = getenv("APP_PORT", fallback(cfg.Port, "8080"))
	cfg.DatabaseURL = mustWith("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getenv("JWT_SECRET", fallback(cfg.JWTSecret, "local_dev_secret"))
	cfg.Env = getenv("APP_ENV", fallback(cfg.Env, "dev"))
	cfg.BillingPolicy = getenv("BILLING_POLICY", fallback(cfg.BillingPolicy, "linear"))
	if v := os.Getenv("TAX_PERCENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Error("bad TAX_PERCENT", "value", v, "err", err)
			panic("bad TAX_PERCENT " + v)
		}
		cfg.TaxPercent = f
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func mustWith(k, fileVal string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	slog.Error("required env missing", "key", k)
	panic("missing env " + k)
}
