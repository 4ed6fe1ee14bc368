package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamteller-api/internal/config"
	workflowport "dreamteller-api/internal/workflow/port"
	apperrors "dreamteller-api/pkg/errors"
)

type fakeChatModel struct {
	reply *schema.Message
	err   error
	opts  *model.Options
}

func (m *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.opts = model.GetCommonOptions(nil, opts...)
	return m.reply, m.err
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type fakeFactory struct {
	models map[string]*fakeChatModel
	asked  []string
}

func (f *fakeFactory) ChatModel(_ context.Context, name string) (model.BaseChatModel, error) {
	f.asked = append(f.asked, name)
	m, ok := f.models[name]
	if !ok {
		return nil, errors.New("provider " + name + " not found")
	}
	return m, nil
}

func testConfig() *config.Config {
	return &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai":   {APIKey: "sk-test", Model: "gpt-4"},
			"creative": {APIKey: "sk-other", Model: "gpt-4o"},
		},
		Workflows: map[string]string{"story_title": "creative"},
	}}
}

func userMessages() []*schema.Message {
	return []*schema.Message{schema.UserMessage("hello")}
}

func TestTextProvider_RoutesByWorkflowAndAppliesOptions(t *testing.T) {
	def := &fakeChatModel{reply: schema.AssistantMessage("sketch text", nil)}
	creative := &fakeChatModel{reply: schema.AssistantMessage("A Title", nil)}
	factory := &fakeFactory{models: map[string]*fakeChatModel{"openai": def, "creative": creative}}
	p := NewTextProvider(factory, testConfig())

	out, err := p.Generate(context.Background(), &workflowport.TextRequest{Workflow: "story_sketch", Messages: userMessages()})
	require.NoError(t, err)
	assert.Equal(t, "sketch text", out)
	assert.Nil(t, def.opts.Temperature)

	temp := float32(0.8)
	maxTokens := 1000
	out, err = p.Generate(context.Background(), &workflowport.TextRequest{
		Workflow:    "story_title",
		Messages:    userMessages(),
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	require.NoError(t, err)
	assert.Equal(t, "A Title", out)
	require.NotNil(t, creative.opts.Temperature)
	assert.Equal(t, float32(0.8), *creative.opts.Temperature)
	assert.Equal(t, 1000, *creative.opts.MaxTokens)
	assert.Equal(t, []string{"openai", "creative"}, factory.asked)
}

func TestTextProvider_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind apperrors.ProviderKind
	}{
		{"Unauthorized", &goopenai.APIError{HTTPStatusCode: 401, Message: "Incorrect API key provided"}, apperrors.ProviderAuth},
		{"RateLimited", &goopenai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached"}, apperrors.ProviderRateLimit},
		{"ServerError", errors.New("error, status code: 503, status: 503 Service Unavailable"), apperrors.ProviderTransient},
		{"Network", errors.New("dial tcp: connection refused"), apperrors.ProviderTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory := &fakeFactory{models: map[string]*fakeChatModel{"openai": {err: tc.err}}}
			_, err := NewTextProvider(factory, testConfig()).Generate(context.Background(),
				&workflowport.TextRequest{Workflow: "story_sketch", Messages: userMessages()})
			require.Error(t, err)
			kind, ok := apperrors.ProviderKindOf(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestTextProvider_RejectsEmptyRequest(t *testing.T) {
	p := NewTextProvider(&fakeFactory{}, testConfig())
	_, err := p.Generate(context.Background(), &workflowport.TextRequest{Workflow: "story_sketch"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))
}

func TestEinoFactory_MissingAPIKeyIsAuthError(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Providers["openai"] = config.ProviderConfig{Model: "gpt-4"}
	built := 0
	f := NewEinoFactory(cfg)
	f.build = func(context.Context, string, config.ProviderConfig) (model.BaseChatModel, error) {
		built++
		return &fakeChatModel{}, nil
	}

	_, err := f.ChatModel(context.Background(), "")
	kind, ok := apperrors.ProviderKindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ProviderAuth, kind)
	assert.Zero(t, built)

	m1, err := f.ChatModel(context.Background(), "creative")
	require.NoError(t, err)
	m2, err := f.ChatModel(context.Background(), "creative")
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, 1, built)

	_, err = f.ChatModel(context.Background(), "missing")
	assert.Error(t, err)
}

func TestStatusFromError(t *testing.T) {
	assert.Equal(t, 401, StatusFromError(&goopenai.APIError{HTTPStatusCode: 401}))
	assert.Equal(t, 502, StatusFromError(errors.New("error, status code: 502, message: bad gateway")))
	assert.Zero(t, StatusFromError(errors.New("boom")))
}
