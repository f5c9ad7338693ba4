package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeChat struct {
	got  []genai.Part
	resp *genai.GenerateContentResponse
	err  error
}

func (c *fakeChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	c.got = append(c.got, parts...)
	return c.resp, c.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
	}
}

func TestNewSessionPassesInstruction(t *testing.T) {
	chat := &fakeChat{resp: textResponse("أهلاً 👋")}
	var gotModel string
	var gotConfig *genai.GenerateContentConfig
	b := newBackend(func(_ context.Context, model string, config *genai.GenerateContentConfig) (messageSender, error) {
		gotModel, gotConfig = model, config
		return chat, nil
	}, "")

	s, err := b.NewSession(t.Context(), "تعليمات")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, gotModel)
	require.NotNil(t, gotConfig.SystemInstruction)
	require.Len(t, gotConfig.SystemInstruction.Parts, 1)
	assert.Equal(t, "تعليمات", gotConfig.SystemInstruction.Parts[0].Text)

	reply, err := s.Send(t.Context(), "مرحبا")
	require.NoError(t, err)
	assert.Equal(t, "أهلاً 👋", reply)
	require.Len(t, chat.got, 1)
	assert.Equal(t, "مرحبا", chat.got[0].Text)
}

func TestSendErrors(t *testing.T) {
	b := newBackend(func(context.Context, string, *genai.GenerateContentConfig) (messageSender, error) {
		return &fakeChat{err: errors.New("quota exceeded")}, nil
	}, "m")
	s, err := b.NewSession(t.Context(), "x")
	require.NoError(t, err)
	_, err = s.Send(t.Context(), "hi")
	assert.ErrorContains(t, err, "quota exceeded")

	failing := newBackend(func(context.Context, string, *genai.GenerateContentConfig) (messageSender, error) {
		return nil, errors.New("bad key")
	}, "m")
	_, err = failing.NewSession(t.Context(), "x")
	assert.ErrorContains(t, err, "bad key")
}

func TestSendEmptyResponse(t *testing.T) {
	b := newBackend(func(context.Context, string, *genai.GenerateContentConfig) (messageSender, error) {
		return &fakeChat{}, nil
	}, "m")
	s, err := b.NewSession(t.Context(), "x")
	require.NoError(t, err)
	reply, err := s.Send(t.Context(), "hi")
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(t.Context(), "", "")
	assert.Error(t, err)
}
