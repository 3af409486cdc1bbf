package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
)

// NewAdvisor creates the configured advisor provider wrapped with analysis
// caching. Provider "none" (or empty) yields the deterministic fallback.
func NewAdvisor(ctx context.Context, cfg *common.AdvisorConfig) (interfaces.Advisor, error) {
	logger := common.GetLogger()

	provider := strings.ToLower(cfg.Provider)
	var inner interfaces.Advisor

	switch provider {
	case "claude":
		llm, err := newClaudeCompleter(cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("claude advisor: %w", err)
		}
		inner = newProviderAdvisor(llm, cfg.Timeout)

	case "gemini":
		llm, err := newGeminiCompleter(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini advisor: %w", err)
		}
		inner = newProviderAdvisor(llm, cfg.Timeout)

	case "none", "":
		inner = NewFallbackAdvisor()

	default:
		return nil, fmt.Errorf("unknown advisor provider: %s", cfg.Provider)
	}

	logger.Info().
		Str("provider", inner.Name()).
		Msg("Advisor initialized")

	return NewCachedAdvisor(inner, cfg.CacheTTL), nil
}
