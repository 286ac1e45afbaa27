package app

import "errors"

// ValidateSecurityConfig enforces startup policy: failing fast on a
// misconfigured backend beats discovering it on the first customer turn.
func ValidateSecurityConfig(cfg Config, log Logger) error {
	switch cfg.BankBackend {
	case BankBackendHTTP:
		if cfg.BankAPIBase == "" {
			return errors.New("security policy: bank backend http requires BANKASSIST_BANK_API_BASE")
		}
		if cfg.BankAPISecret == "" {
			return errors.New("security policy: bank backend http requires BANKASSIST_BANK_API_SECRET")
		}
	case BankBackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("security policy: bank backend postgres requires BANKASSIST_DATABASE_URL")
		}
	}

	// A missing model key is survivable in local development: the provider
	// degrades every turn to a service-unavailable reply.
	if cfg.OpenAIKey == "" {
		log.Warn("config.openai_key_missing", "hint", "set OPENAI_API_KEY; model turns will degrade")
	}

	return nil
}
