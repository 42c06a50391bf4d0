package verify

import (
	"context"
	"testing"
	"time"

	"github.com/entrhq/guitest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		deps     Deps
		wantErr  error
	}{
		{name: "unknown provider", settings: Settings{Provider: "gemini", APIKey: "k"}, wantErr: ErrUnknownProvider},
		{name: "missing key", settings: Settings{Provider: ProviderOpenAI}, wantErr: ErrMissingCredential},
		{name: "missing key for agent", settings: Settings{Provider: ProviderUITars}, deps: Deps{Operator: &fakeOperator{}}, wantErr: ErrMissingCredential},
		{name: "custom without base url", settings: Settings{Provider: ProviderCustom, APIKey: "k"}, wantErr: types.ErrConfig},
		{name: "ui-tars without session", settings: Settings{Provider: ProviderUITars, APIKey: "k"}, wantErr: types.ErrConfig},
		{name: "huggingface without base url", settings: Settings{Provider: ProviderHuggingFace, APIKey: "k"}, deps: Deps{Operator: &fakeOperator{}}, wantErr: types.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.settings, tt.deps)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, types.ErrConfig)
		})
	}
}

func TestNew_MissingCredentialNamesEnv(t *testing.T) {
	_, err := New(Settings{Provider: ProviderUITars}, Deps{Operator: &fakeOperator{}})
	require.Error(t, err)
	assert.True(t, IsMissingCredential(err))
	assert.Contains(t, err.Error(), "UI_TARS_API_KEY or VLM_API_KEY")
}

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		provider string
		baseURL  string
		agentic  bool
		name     string
	}{
		{provider: "ui-tars", agentic: true, name: ProviderUITars},
		{provider: "HuggingFace", baseURL: "https://hf.example/v1", agentic: true, name: ProviderHuggingFace},
		{provider: "agent-tars", agentic: true, name: ProviderAgentTars},
		{provider: "openai", name: ProviderOpenAI},
		{provider: "volcengine", name: ProviderVolcengine},
		{provider: "anthropic", name: ProviderAnthropic},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := New(Settings{Provider: tt.provider, APIKey: "k", BaseURL: tt.baseURL}, Deps{Operator: &fakeOperator{}})
			require.NoError(t, err)
			assert.Equal(t, tt.agentic, p.Agentic())
			assert.Equal(t, tt.name, p.Name())
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(Settings{Provider: ProviderVolcengine, APIKey: "k"}, Deps{})
	require.NoError(t, err)
	judge := p.(*ChatJudge)
	assert.Equal(t, VolcengineBaseURL, judge.client.baseURL)
	assert.False(t, judge.jsonMode)

	p, err = New(Settings{Provider: ProviderUITars, APIKey: "k"}, Deps{Operator: &fakeOperator{}})
	require.NoError(t, err)
	agent := p.(*UITarsAgent)
	assert.Equal(t, DefaultUITarsModel, agent.client.model)
	assert.Equal(t, DefaultMaxSteps, agent.maxSteps)
}

func TestCredentialEnv(t *testing.T) {
	assert.Equal(t, []string{"UI_TARS_API_KEY", "VLM_API_KEY"}, CredentialEnv(ProviderHuggingFace))
	assert.Equal(t, []string{"ANTHROPIC_API_KEY", "VLM_API_KEY"}, CredentialEnv(ProviderAnthropic))
	assert.Equal(t, "UI_TARS_BASE_URL", BaseURLEnv(ProviderUITars))
	assert.Empty(t, BaseURLEnv(ProviderCustom))
}

type countingProvider struct{ calls int }

func (c *countingProvider) Name() string  { return "counting" }
func (c *countingProvider) Agentic() bool { return false }
func (c *countingProvider) Verify(context.Context, Request) (types.Verification, error) {
	c.calls++
	return types.Verification{Passed: true}, nil
}

func TestLimited(t *testing.T) {
	inner := &countingProvider{}
	p := NewLimited(inner, 1, 1)
	assert.Equal(t, "counting", p.Name())

	got, err := p.Verify(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, got.Passed)

	// the bucket is empty now; the next call cannot start before the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Verify(ctx, Request{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestNew_WrapsWithLimiter(t *testing.T) {
	p, err := New(Settings{Provider: ProviderOpenAI, APIKey: "k", RequestsPerSecond: 2}, Deps{})
	require.NoError(t, err)
	_, ok := p.(*Limited)
	assert.True(t, ok)
	assert.Equal(t, ProviderOpenAI, p.Name())
}
