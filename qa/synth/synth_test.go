package synth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/errors"
	"github.com/teranos/samarth/model"
	"github.com/teranos/samarth/qa/plan"
	"github.com/teranos/samarth/qa/schema"
)

type scripted struct {
	text   string
	err    error
	prompt string
	calls  int
}

func (s *scripted) Call(_ context.Context, prompt string, callType model.CallType) (model.Response, error) {
	s.calls++
	s.prompt = prompt
	if callType != model.CallQueryGeneration {
		panic("unexpected call type " + callType)
	}
	return model.Response{Text: s.text, CallID: "query_generation_test"}, s.err
}

func description() schema.Description {
	return schema.Description{Datasets: []schema.Dataset{{
		Name:     "agmark_crops",
		RowCount: 2,
		Columns: []dataset.ColumnProfile{
			{Name: "Crop", Type: dataset.TypeString, Unique: 2},
		},
	}}}
}

const planJSON = `{"result": {"dataset": "agmark_crops", "ops": [{"op": "head", "n": 20}]}}`

func TestExtract_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantBy string
	}{
		{
			name:   "delimited block wins over fence",
			text:   "```json\n{\"fence\": 1}\n```\n<QUERY_PLAN>\n" + planJSON + "\n</QUERY_PLAN>",
			want:   planJSON,
			wantBy: "delimited",
		},
		{
			name:   "fence with info string",
			text:   "Here you go:\n```json\n" + planJSON + "\n```\nDone.",
			want:   planJSON,
			wantBy: "fence",
		},
		{
			name:   "fence without info string",
			text:   "```\n" + planJSON + "```",
			want:   planJSON,
			wantBy: "fence",
		},
		{
			name:   "first delimited block only",
			text:   "<QUERY_PLAN>a</QUERY_PLAN><QUERY_PLAN>b</QUERY_PLAN>",
			want:   "a",
			wantBy: "delimited",
		},
		{
			name:   "raw fallback trims",
			text:   "\n  " + planJSON + "  \n",
			want:   planJSON,
			wantBy: "raw",
		},
		{
			name:   "unterminated delimiter falls through to raw",
			text:   "<QUERY_PLAN>" + planJSON,
			want:   "<QUERY_PLAN>" + planJSON,
			wantBy: "raw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, by, ok := Extract(tt.text, DefaultExtractors())
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantBy, by)
		})
	}

	_, _, ok := Extract("text", []Extractor{Delimited{}, Fence{}})
	assert.False(t, ok, "no raw fallback configured")
}

func TestPrompt(t *testing.T) {
	s := New(&scripted{}, 15, nil)
	p := s.Prompt("Which crops are listed?", description())

	assert.True(t, strings.HasPrefix(p, "<SYSTEM>You are a senior data analyst"))
	assert.Contains(t, p, "<SCHEMA>\n  <DATASET name=\"agmark_crops\">")
	assert.Contains(t, p, "<QUESTION>\nWhich crops are listed?\n</QUESTION>")
	assert.Contains(t, p, `- Always cap outputs with {"op": "head", "n": 15}`)
	assert.Contains(t, p, "<QUERY_PLAN>")
	assert.Contains(t, p, `{"op": "head", "n": 15}]}}`)

	order := []string{"<SYSTEM>", "<SCHEMA>", "<QUESTION>", "<CONSTRAINTS>", "<OPS>", "<OUTPUT_FORMAT>"}
	last := -1
	for _, tag := range order {
		i := strings.Index(p, tag)
		require.Greater(t, i, last, tag)
		last = i
	}
}

func TestPrompt_DocumentsEveryOp(t *testing.T) {
	p := New(&scripted{}, 0, nil).Prompt("q", description())

	start := strings.Index(p, "<OPS>")
	end := strings.Index(p, "</OPS>")
	require.True(t, start >= 0 && end > start)
	ops := strings.Split(strings.TrimSpace(p[start+len("<OPS>"):end]), "\n")

	names := plan.OpNames()
	require.Len(t, ops, len(names))
	for i, name := range names {
		assert.NotEmpty(t, opUsage[name], name)
		assert.True(t, strings.HasPrefix(ops[i], name+`: {"op": "`+name+`"`), ops[i])
	}
	assert.Len(t, opUsage, len(names), "no usage for an op the planner does not know")
}

func TestSynthesize(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	t.Run("extracts the plan", func(t *testing.T) {
		caller := &scripted{text: "<QUERY_PLAN>\n" + planJSON + "\n</QUERY_PLAN>"}
		out, err := New(caller, 20, log).Synthesize(context.Background(), "q", description())
		require.NoError(t, err)
		assert.Equal(t, planJSON, out.Program)
		assert.Equal(t, "delimited", out.Extractor)
		assert.Equal(t, "query_generation_test", out.CallID)
		assert.Equal(t, caller.prompt, out.Prompt)
		assert.Equal(t, 1, caller.calls)
	})

	failures := []struct {
		name    string
		caller  *scripted
		message string
	}{
		{"model call error", &scripted{err: errors.New("connection refused")}, "connection refused"},
		{"empty response", &scripted{text: "   \n"}, "model returned no text"},
		{"empty block", &scripted{text: "<QUERY_PLAN>\n\n</QUERY_PLAN>"}, "failed to extract a query plan"},
		{"degraded text", &scripted{text: "Error generating content: 429 quota"}, "Error generating content: 429 quota"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.caller, 20, log).Synthesize(context.Background(), "q", description())
			require.Error(t, err)

			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Contains(t, se.Message, tc.message)
			assert.True(t, errors.Is(err, errors.ErrSynthesis))
			assert.Equal(t, 1, tc.caller.calls, "no retry")
		})
	}

	t.Run("degraded text is flagged", func(t *testing.T) {
		_, err := New(&scripted{text: "Error: Unexpected response format"}, 20, log).
			Synthesize(context.Background(), "q", description())
		assert.True(t, errors.Is(err, errors.ErrModelDegraded))
	})

	t.Run("error-prefixed text with a block still yields a plan", func(t *testing.T) {
		caller := &scripted{text: "Error-free plan follows\n<QUERY_PLAN>" + planJSON + "</QUERY_PLAN>"}
		out, err := New(caller, 20, log).Synthesize(context.Background(), "q", description())
		require.NoError(t, err)
		assert.Equal(t, planJSON, out.Program)
	})
}
