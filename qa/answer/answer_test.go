package answer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/model"
	"github.com/teranos/samarth/qa/citation"
	"github.com/teranos/samarth/qa/evidence"
)

func bundle() evidence.Bundle {
	return evidence.Bundle{
		Type:    evidence.TypeScalar,
		Records: "42",
	}
}

func TestPrompt(t *testing.T) {
	cites := citation.NewBuilder(nil).Cite([]string{"agmark_crops"})
	p, err := Prompt("How many crops?", `{"result": {"dataset": "agmark_crops", "ops": [{"op": "count"}]}}`, bundle(), cites)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p,
		"<SYSTEM>You are a precise policy/data analyst. Cite exact numbers and sources.</SYSTEM>\n\n<QUESTION>\nHow many crops?\n</QUESTION>"))
	assert.Contains(t, p, "<EXECUTED_CODE>\n{\"result\": {\"dataset\": \"agmark_crops\", \"ops\": [{\"op\": \"count\"}]}}\n</EXECUTED_CODE>")
	assert.Contains(t, p, "<EVIDENCE>\n{\n  \"type\": \"scalar\",\n  \"records\": \"42\"")
	assert.Contains(t, p, "<CITATIONS>\n  <SOURCE>\n    <name>Agmark Crops Dataset</name>\n    <source>Agmarknet (agmarknet.gov.in)</source>\n    <description>Crop varieties and types</description>\n  </SOURCE>\n</CITATIONS>")
	assert.Contains(t, p, `- If evidence shows the data was capped, mention "showing top N results"`)
	assert.True(t, strings.HasSuffix(p, "Sources:\n- [List source names from <CITATIONS>]\n</OUTPUT_FORMAT>"))
}

func TestPrompt_NoCitations(t *testing.T) {
	p, err := Prompt("q", "{}", bundle(), nil)
	require.NoError(t, err)
	assert.Contains(t, p, "<CITATIONS>\n</CITATIONS>")
}

func TestSynthesize(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	t.Run("returns model text verbatim", func(t *testing.T) {
		text := "  There are **42** crops.\n\nSources:\n- Agmark Crops Dataset\n"
		caller := model.CallerFunc(func(_ context.Context, _ string, ct model.CallType) (model.Response, error) {
			assert.Equal(t, model.CallAnswerSynthesis, ct)
			return model.Response{Text: text, CallID: "answer_synthesis_x"}, nil
		})

		out, err := New(caller, log).Synthesize(context.Background(), "q", "{}", bundle(), nil)
		require.NoError(t, err)
		assert.Equal(t, text, out.Answer)
		assert.Equal(t, "answer_synthesis_x", out.CallID)
	})

	t.Run("degraded text is still the answer", func(t *testing.T) {
		caller := model.CallerFunc(func(context.Context, string, model.CallType) (model.Response, error) {
			return model.Response{Text: "Error generating content: timeout"}, nil
		})
		out, err := New(caller, log).Synthesize(context.Background(), "q", "{}", bundle(), nil)
		require.NoError(t, err)
		assert.Equal(t, "Error generating content: timeout", out.Answer)
	})

	t.Run("transport errors surface", func(t *testing.T) {
		caller := model.CallerFunc(func(context.Context, string, model.CallType) (model.Response, error) {
			return model.Response{}, &model.TransportError{Err: errors.New("refused")}
		})
		_, err := New(caller, log).Synthesize(context.Background(), "q", "{}", bundle(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "refused")
	})
}
