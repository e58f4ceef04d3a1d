package httpapi

import (
	"fmt"
	"strings"
)

const (
	defaultListenAddr         = ":8080"
	defaultAllowedOrigin      = "http://localhost:3000"
	defaultJWTIssuer          = "marketd"
	defaultLeadFeeCents       = 4000
	defaultVoucherCents       = 4000
	defaultWalletHistoryLimit = 20
)

// Config aggregates runtime settings for the marketplace API.
type Config struct {
	ListenAddr         string
	AllowedOrigins     []string
	JWTSigningKey      string
	JWTIssuer          string
	LeadFeeCents       int64
	VoucherCents       int64
	WalletHistoryLimit int
}

// Validate ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.JWTIssuer = defaultIfEmpty(cfg.JWTIssuer, defaultJWTIssuer)
	if cfg.LeadFeeCents <= 0 {
		cfg.LeadFeeCents = defaultLeadFeeCents
	}
	if cfg.VoucherCents <= 0 {
		cfg.VoucherCents = defaultVoucherCents
	}
	if cfg.WalletHistoryLimit <= 0 {
		cfg.WalletHistoryLimit = defaultWalletHistoryLimit
	}
	if len(cfg.JWTSigningKey) == 0 {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
