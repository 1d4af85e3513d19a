package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/samarth/am"
	"github.com/teranos/samarth/errors"
	qtest "github.com/teranos/samarth/internal/testing"
	"github.com/teranos/samarth/qa/citation"
	"github.com/teranos/samarth/qa/pipeline"
	"github.com/teranos/samarth/trace"
)

func init() {
	pterm.DisableStyling()
}

func TestIsExit(t *testing.T) {
	for _, s := range []string{"exit", " QUIT ", "q"} {
		assert.True(t, isExit(s), s)
	}
	for _, s := range []string{"", "quitting", "what is the rainfall in Kerala?"} {
		assert.False(t, isExit(s), s)
	}
}

func TestRepl(t *testing.T) {
	in := strings.NewReader("How many mandis in Punjab?\n\n   \nexit\nnever asked\n")
	var out bytes.Buffer
	var asked []string

	err := repl(context.Background(), in, &out, func(q string) *pipeline.Answer {
		asked = append(asked, q)
		return &pipeline.Answer{
			Success: true,
			Answer:  "There are 12 mandis in Punjab.",
			Citations: []citation.Citation{
				{Name: "Mandi Prices", Source: "data.gov.in"},
			},
		}
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"How many mandis in Punjab?"}, asked)
	assert.Contains(t, out.String(), "There are 12 mandis in Punjab.")
	assert.Contains(t, out.String(), "1. Mandi Prices (data.gov.in)")
}

func TestRepl_EOF(t *testing.T) {
	var out bytes.Buffer
	err := repl(context.Background(), strings.NewReader(""), &out, func(string) *pipeline.Answer {
		t.Fatal("no question expected")
		return nil
	})
	assert.NoError(t, err)
}

func TestPrintAnswer_Failure(t *testing.T) {
	var out bytes.Buffer
	tr := &trace.Trace{FinalAnswer: "Error executing query: unknown dataset \"crops\""}
	printAnswer(&out, &pipeline.Answer{Success: false, Trace: tr})
	assert.Equal(t, "Error executing query: unknown dataset \"crops\"\n", out.String())
}

func TestWriteJSON_KeepsMarkup(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeJSON(&out, map[string]string{"answer": "<b>₹2,150</b> & up"}))
	assert.Contains(t, out.String(), `"<b>₹2,150</b> & up"`)
}

func TestRedactSecrets(t *testing.T) {
	cfg := &am.Config{}
	cfg.OpenRouter.APIKey = "sk-or-v1-abc"
	cfg.Trace.PostgresDSN = "postgres://u:p@db/samarth"

	redactSecrets(cfg)
	assert.Equal(t, "********", cfg.OpenRouter.APIKey)
	assert.Equal(t, "", cfg.Gemini.APIKey)
	assert.Equal(t, "********", cfg.Trace.PostgresDSN)
}

func TestShortIDAndTruncate(t *testing.T) {
	assert.Equal(t, "5f0c2b7e", shortID("5f0c2b7e-8a41-4d1f-9a55-0f7c1e3b2d10"))
	assert.Equal(t, "abc", shortID("abc"))

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "मंडी...", truncate("मंडी की कीमतें", 7))
}

func sampleTrace() *trace.Trace {
	tr := &trace.Trace{}
	tr.Append(trace.Step{
		Stage:      trace.StageQuerySynth,
		CallID:     "query_generation_2025-11-02T09-15-30.000000",
		DurationMS: 1200,
		Payload: map[string]any{
			"relevant_datasets": []string{"agmark_mandis_and_locations"},
			"query_code":        `{"result":{"dataset":"agmark_mandis_and_locations","ops":[{"op":"count"}]}}`,
		},
	})
	tr.Append(trace.Step{
		Stage:      trace.StageExecute,
		DurationMS: 3,
		Error:      "unknown column \"Mandi\"",
	})
	return tr
}

func TestPrintDetails_Levels(t *testing.T) {
	var quiet bytes.Buffer
	printDetails(&quiet, sampleTrace(), 0, "llm_logs")
	assert.Empty(t, quiet.String())

	var info bytes.Buffer
	printDetails(&info, sampleTrace(), 1, "llm_logs")
	assert.Contains(t, info.String(), "1. Query Generation (LLM Call #1) ok")
	assert.Contains(t, info.String(), "2. Query Execution (Deterministic) failed")
	assert.NotContains(t, info.String(), "query-plan")

	var debug bytes.Buffer
	printDetails(&debug, sampleTrace(), 2, "llm_logs")
	assert.Contains(t, debug.String(), "agmark_mandis_and_locations")
	assert.Contains(t, debug.String(), `"op":"count"`)
	assert.Contains(t, debug.String(), "total")
	assert.NotContains(t, debug.String(), "_INPUT.txt")

	var all bytes.Buffer
	printDetails(&all, sampleTrace(), 4, "llm_logs")
	assert.Contains(t, all.String(), "query_generation_2025-11-02T09-15-30.000000_INPUT.txt")
	assert.Contains(t, all.String(), "query_generation_2025-11-02T09-15-30.000000_OUTPUT.txt")
}

func TestFindTrace_FallsBackToFiles(t *testing.T) {
	ctx := context.Background()
	db := qtest.CreateMigratedTestDB(t)
	store := trace.NewSQLiteStore(db)
	files := trace.NewFileSink(t.TempDir())

	stored := trace.New("How many mandis in Punjab?", time.Date(2025, 11, 2, 9, 15, 30, 0, time.UTC))
	require.NoError(t, store.Save(ctx, stored, stored.Target()))
	onDisk := trace.New("Varieties of paddy", time.Date(2025, 11, 3, 8, 0, 0, 0, time.UTC))
	require.NoError(t, files.Save(ctx, onDisk, onDisk.Target()))

	got, err := findTrace(ctx, stored.ID, store, files)
	require.NoError(t, err)
	assert.Equal(t, stored.Question, got.Question)

	got, err = findTrace(ctx, onDisk.Target(), store, files)
	require.NoError(t, err)
	assert.Equal(t, onDisk.ID, got.ID)

	got, err = findTrace(ctx, onDisk.Target(), nil, files)
	require.NoError(t, err)
	assert.Equal(t, onDisk.ID, got.ID)

	_, err = findTrace(ctx, "TRACE_missing", store, files)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestFindTrace_StoreErrorsAreNotMasked(t *testing.T) {
	ctx := context.Background()
	db := qtest.CreateMigratedTestDB(t)
	require.NoError(t, db.Close())
	files := trace.NewFileSink(t.TempDir())

	onDisk := trace.New("Varieties of paddy", time.Now())
	require.NoError(t, files.Save(ctx, onDisk, onDisk.Target()))

	_, err := findTrace(ctx, onDisk.Target(), trace.NewSQLiteStore(db), files)
	require.Error(t, err)
	assert.False(t, errors.IsNotFoundError(err))
}
