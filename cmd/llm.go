package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/crev/internal/llm"
	"github.com/joescharf/crev/internal/review"
)

// Supported values of the transport config key.
const (
	transportBackend   = "backend"
	transportAnthropic = "anthropic"
)

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

// newTransport selects the review transport and names its target for
// connectivity errors.
func newTransport() (review.Transport, string, error) {
	switch t := viper.GetString("transport"); t {
	case "", transportBackend:
		c := newBackendClient()
		return c, c.BaseURL(), nil
	case transportAnthropic:
		c := newLLMClient()
		if c == nil {
			return nil, "", fmt.Errorf("transport %q needs an API key: set anthropic.api_key or ANTHROPIC_API_KEY", t)
		}
		return c, "https://api.anthropic.com", nil
	default:
		return nil, "", fmt.Errorf("unknown transport: %s (use: %s, %s)", t, transportBackend, transportAnthropic)
	}
}
