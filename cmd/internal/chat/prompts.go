package chat

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// fallbackPrompt drives the assistant when no domain prompt files are
// configured. It pins the strict validate-account-before-PIN flow.
const fallbackPrompt = "You are a banking assistant that helps users check their account balance information.\n" +
	"Follow a strict flow:\n" +
	"1. Ask for account number first\n" +
	"2. Immediately validate that the account number exists before asking for the PIN\n" +
	"3. Only after validating the account number, ask for the PIN\n" +
	"4. Then provide detailed account balance information including current balance, currency, account status, and last transaction date.\n\n" +
	"IMPORTANT: Always validate account number existence using the validate_account tool before asking for the PIN.\n" +
	"IMPORTANT: If an account number is not found, immediately inform the user and ask for a valid account number.\n" +
	"IMPORTANT: Always provide ALL information that is available in the account details, including last transaction date.\n\n" +
	"Be professional and friendly. Remember: your focus is on providing complete and accurate account information for standard deposit accounts."

// Prompts holds per-domain system prompt fragments loaded from JSON
// files. A file named authentication_prompt.json feeds the
// "authentication" domain.
type Prompts struct {
	log     *slog.Logger
	domains map[string]string
}

// LoadPrompts reads every *.json file in dir. Each file contributes its
// "content" field (falling back to "system_prompt") under its "domain",
// defaulting to the filename stem with any "_prompt" suffix stripped.
// A missing directory is not an error: Compose falls back to the
// built-in prompt.
func LoadPrompts(log *slog.Logger, dir string) *Prompts {
	if log == nil {
		log = slog.Default()
	}
	p := &Prompts{log: log, domains: make(map[string]string)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("chat.prompts_dir_unavailable", "dir", dir, "err", err)
		return p
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Error("chat.prompt_read_fail", "file", entry.Name(), "err", err)
			continue
		}
		var cfg struct {
			Domain       string `json:"domain"`
			Content      string `json:"content"`
			SystemPrompt string `json:"system_prompt"`
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			log.Error("chat.prompt_parse_fail", "file", entry.Name(), "err", err)
			continue
		}
		domain := cfg.Domain
		if domain == "" {
			stem := strings.TrimSuffix(entry.Name(), ".json")
			domain = strings.TrimSuffix(stem, "_prompt")
		}
		prompt := cfg.Content
		if prompt == "" {
			prompt = cfg.SystemPrompt
		}
		if prompt == "" {
			log.Warn("chat.prompt_empty", "file", entry.Name())
			continue
		}
		p.domains[domain] = prompt
		log.Info("chat.prompt_loaded", "domain", domain)
	}
	return p
}

// Domain returns the prompt fragment for one domain, if loaded.
func (p *Prompts) Domain(domain string) (string, bool) {
	prompt, ok := p.domains[domain]
	return prompt, ok
}

// Compose joins the prompt fragments for the given domains. When none
// of the domains have a fragment the built-in fallback is returned.
func (p *Prompts) Compose(domains []string) string {
	var parts []string
	for _, d := range domains {
		if prompt, ok := p.domains[d]; ok {
			parts = append(parts, prompt)
		}
	}
	if len(parts) == 0 {
		p.log.Warn("chat.prompts_fallback")
		return fallbackPrompt
	}
	return strings.Join(parts, "\n\n")
}
