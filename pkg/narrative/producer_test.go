package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusforward/caseguard/pkg/llm"
	"github.com/focusforward/caseguard/pkg/rules"
)

type stubClient struct {
	content string
	err     error
	calls   int
	last    []llm.Message
	opts    *llm.SamplingOptions
}

func (s *stubClient) Chat(ctx context.Context, msgs []llm.Message, options *llm.SamplingOptions) (*llm.Response, error) {
	s.calls++
	s.last = msgs
	s.opts = options
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, Model: "stub"}, nil
}

func TestLLMProducer_Produce(t *testing.T) {
	client := &stubClient{content: validPayload}
	p, err := NewLLMProducer(client, nil, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Fingerprint(), "sha256:"))

	out, err := p.Produce(context.Background(), "45M well discharged", Context{Pending: []string{"Imaging pending: x"}})
	require.NoError(t, err)
	assert.Equal(t, rules.TierSafe, out.Classification)

	assert.Equal(t, 1, client.calls)
	require.NotNil(t, client.opts)
	assert.True(t, client.opts.JSONObject)
	assert.Zero(t, client.opts.Temperature)
	assert.Contains(t, client.last[len(client.last)-1].Content, "Imaging pending: x")
}

func TestLLMProducer_Failures(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		boom := errors.New("connection reset")
		client := &stubClient{err: boom}
		p, err := NewLLMProducer(client, nil, nil)
		require.NoError(t, err)

		_, err = p.Produce(context.Background(), "note", Context{})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, client.calls, "no retries")
	})

	t.Run("malformed", func(t *testing.T) {
		client := &stubClient{content: `{"classification":"SAFE"}`}
		p, err := NewLLMProducer(client, nil, nil)
		require.NoError(t, err)

		_, err = p.Produce(context.Background(), "note", Context{})
		assert.ErrorIs(t, err, ErrMalformedOutput)
	})
}

func TestNewLLMProducer_Rejects(t *testing.T) {
	_, err := NewLLMProducer(nil, nil, nil)
	assert.Error(t, err)

	_, err = NewLLMProducer(&stubClient{}, &PromptPolicy{Version: "x"}, nil)
	assert.Error(t, err)
}
