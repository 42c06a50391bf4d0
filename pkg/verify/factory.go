package verify

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/entrhq/guitest/pkg/types"
	"github.com/rs/zerolog"
)

// Provider names.
const (
	ProviderUITars      = "ui-tars"
	ProviderHuggingFace = "huggingface"
	ProviderAgentTars   = "agent-tars"
	ProviderOpenAI      = "openai"
	ProviderVolcengine  = "volcengine"
	ProviderCustom      = "custom"
	ProviderAnthropic   = "anthropic"
)

// Providers lists every accepted provider name.
var Providers = []string{
	ProviderUITars, ProviderHuggingFace, ProviderAgentTars,
	ProviderOpenAI, ProviderVolcengine, ProviderCustom, ProviderAnthropic,
}

// Settings selects and configures a provider.
type Settings struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	// RequestsPerSecond paces calls when positive.
	RequestsPerSecond float64

	// MaxSteps bounds the ui-tars agent loop; zero means DefaultMaxSteps.
	MaxSteps int

	// AgentCommand overrides DefaultAgentTarsCommand.
	AgentCommand []string

	// RequestTimeout bounds each HTTP request; zero means two minutes.
	RequestTimeout time.Duration
}

// Deps are the collaborators a provider may need.
type Deps struct {
	// Operator is required by ui-tars.
	Operator   Operator
	HTTPClient *http.Client
	WorkDir    string
	Logger     zerolog.Logger
}

// CredentialEnv returns the environment variables consulted, in order, for
// the API key of provider.
func CredentialEnv(provider string) []string {
	switch provider {
	case ProviderUITars, ProviderHuggingFace:
		return []string{"UI_TARS_API_KEY", "VLM_API_KEY"}
	case ProviderOpenAI:
		return []string{"OPENAI_API_KEY", "VLM_API_KEY"}
	case ProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY", "VLM_API_KEY"}
	case ProviderVolcengine, ProviderAgentTars:
		return []string{"ARK_API_KEY", "VLM_API_KEY"}
	default:
		return []string{"VLM_API_KEY"}
	}
}

// BaseURLEnv returns the environment variable naming the endpoint of
// provider, or "" when it has none.
func BaseURLEnv(provider string) string {
	switch provider {
	case ProviderUITars, ProviderHuggingFace:
		return "UI_TARS_BASE_URL"
	case ProviderOpenAI:
		return "OPENAI_BASE_URL"
	}
	return ""
}

// New builds the provider named by s. Configuration is checked before any
// network access: an unknown name returns ErrUnknownProvider and a missing
// key returns ErrMissingCredential.
func New(s Settings, deps Deps) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(s.Provider))
	if !slices.Contains(Providers, name) {
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, s.Provider)
	}
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w for provider %s (set %s)", ErrMissingCredential, name, strings.Join(CredentialEnv(name), " or "))
	}

	client := deps.HTTPClient
	if client == nil {
		timeout := s.RequestTimeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := deps.Logger.With().Str("provider", name).Logger()

	var p Provider
	switch name {
	case ProviderUITars, ProviderHuggingFace:
		if deps.Operator == nil {
			return nil, fmt.Errorf("%w: %s requires a browser session", types.ErrConfig, name)
		}
		if name == ProviderHuggingFace && s.BaseURL == "" {
			return nil, fmt.Errorf("%w: huggingface provider requires a base URL (set UI_TARS_BASE_URL)", types.ErrConfig)
		}
		steps := s.MaxSteps
		if steps <= 0 {
			steps = DefaultMaxSteps
		}
		p = &UITarsAgent{
			client:   chatClient{name: name, httpClient: client, baseURL: or(s.BaseURL, OpenAIBaseURL), apiKey: s.APIKey, model: or(s.Model, DefaultUITarsModel)},
			operator: deps.Operator,
			maxSteps: steps,
			wait:     agentWait,
			logger:   logger,
		}

	case ProviderAgentTars:
		command := s.AgentCommand
		if len(command) == 0 {
			command = DefaultAgentTarsCommand
		}
		p = &AgentTars{
			command:  command,
			provider: DefaultAgentTarsProvider,
			model:    or(s.Model, DefaultAgentTarsModel),
			apiKey:   s.APIKey,
			dir:      deps.WorkDir,
			logger:   logger,
		}

	case ProviderOpenAI:
		p = &ChatJudge{
			client:   chatClient{name: name, httpClient: client, baseURL: or(s.BaseURL, OpenAIBaseURL), apiKey: s.APIKey, model: or(s.Model, DefaultOpenAIModel)},
			jsonMode: true,
		}

	case ProviderVolcengine:
		p = &ChatJudge{
			client: chatClient{name: name, httpClient: client, baseURL: or(s.BaseURL, VolcengineBaseURL), apiKey: s.APIKey, model: or(s.Model, DefaultVolcengineModel)},
		}

	case ProviderCustom:
		if s.BaseURL == "" {
			return nil, fmt.Errorf("%w: custom provider requires a base URL", types.ErrConfig)
		}
		p = &ChatJudge{
			client: chatClient{name: name, httpClient: client, baseURL: s.BaseURL, apiKey: s.APIKey, model: or(s.Model, DefaultOpenAIModel)},
		}

	case ProviderAnthropic:
		p = &AnthropicJudge{
			httpClient: client,
			baseURL:    or(s.BaseURL, AnthropicBaseURL),
			apiKey:     s.APIKey,
			model:      or(s.Model, DefaultAnthropicModel),
		}
	}

	if s.RequestsPerSecond > 0 {
		p = NewLimited(p, s.RequestsPerSecond, 1)
	}
	return p, nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
