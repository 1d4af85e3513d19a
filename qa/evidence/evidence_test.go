package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/samarth/dataset"
	"github.com/teranos/samarth/qa/executor"
	"github.com/teranos/samarth/qa/plan"
)

func tableResult(rows int) *executor.Result {
	t := &plan.Table{Columns: []dataset.Column{
		{Name: "Mandi Name", Type: dataset.TypeString},
		{Name: "Arrivals", Type: dataset.TypeInt},
	}}
	for i := 0; i < rows; i++ {
		t.Rows = append(t.Rows, []any{fmt.Sprintf("mandi-%d", i), int64(i)})
	}
	return &executor.Result{Kind: executor.TabularResult, Table: t}
}

func TestBuild_Invariant(t *testing.T) {
	for _, total := range []int{0, 1, 19, 20, 21, 11330} {
		for _, limit := range []int{1, 5, 20, 100} {
			t.Run(fmt.Sprintf("%d rows max %d", total, limit), func(t *testing.T) {
				b := Build(tableResult(total), nil, limit)

				require.NotNil(t, b.SummaryStats)
				assert.Equal(t, total, b.SummaryStats.TotalRows)
				assert.Equal(t, min(total, limit), b.SummaryStats.RowsReturned)
				assert.Equal(t, total > limit, b.SummaryStats.Capped)
				assert.Len(t, b.Records, b.SummaryStats.RowsReturned)
			})
		}
	}
}

func TestBuild_Table(t *testing.T) {
	b := Build(tableResult(11330), []string{"agmark_mandis_and_locations"}, 0)

	assert.Equal(t, TypeTable, b.Type)
	assert.Equal(t, []int{11330, 2}, b.Shape)
	assert.Equal(t, []string{"Mandi Name", "Arrivals"}, b.Columns)
	assert.Equal(t, SummaryStats{TotalRows: 11330, RowsReturned: 20, Capped: true}, *b.SummaryStats)
	assert.Equal(t, []string{"agmark_mandis_and_locations"}, b.DatasetsUsed)
}

func TestBuild_Series(t *testing.T) {
	res := &executor.Result{Kind: executor.ScalarSeriesResult, Series: &plan.Series{
		Name:      "count",
		IndexName: "State Name",
		Index:     []any{"Uttar Pradesh", "Punjab", "Bihar"},
		Values:    []any{int64(250), int64(150), int64(90)},
	}}

	b := Build(res, []string{"agmark_mandis_and_locations"}, 2)
	assert.Equal(t, TypeSeries, b.Type)
	assert.Equal(t, []int{3}, b.Shape)
	assert.Equal(t, SummaryStats{TotalRows: 3, RowsReturned: 2, Capped: true}, *b.SummaryStats)

	out, err := json.Marshal(b.Records)
	require.NoError(t, err)
	assert.Equal(t, `{"Uttar Pradesh":250,"Punjab":150}`, string(out))
}

func TestBuild_Opaque(t *testing.T) {
	b := Build(&executor.Result{Kind: executor.OpaqueResult, Opaque: "11330"}, nil, 20)

	assert.Equal(t, TypeScalar, b.Type)
	assert.Equal(t, "11330", b.Records)
	assert.Nil(t, b.SummaryStats)

	out, err := b.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "scalar", "records": "11330", "datasets_used": []}`, out)
}

func TestJSON_KeepsColumnOrder(t *testing.T) {
	res := &executor.Result{Kind: executor.TabularResult, Table: &plan.Table{
		Columns: []dataset.Column{{Name: "Zone"}, {Name: "Area"}, {Name: "Mandi"}},
		Rows:    [][]any{{"North", 12.5, "Karnal & Co <HQ>"}, {"South", nil, "Salem"}},
	}}

	out, err := Build(res, []string{"x"}, 20).JSON()
	require.NoError(t, err)

	assert.Contains(t, out, `"Zone": "North",`)
	assert.Contains(t, out, "{\n      \"Zone\": \"North\",\n      \"Area\": 12.5,\n      \"Mandi\": \"Karnal & Co <HQ>\"\n    }")
	assert.Contains(t, out, `"Area": null`)
}

func TestJSON_NonFiniteFloatsAreNull(t *testing.T) {
	table := &executor.Result{Kind: executor.TabularResult, Table: &plan.Table{
		Columns: []dataset.Column{{Name: "Market"}, {Name: "Price", Type: dataset.TypeFloat}},
		Rows:    [][]any{{"A", 12.5}, {"B", math.Inf(1)}, {"C", math.Inf(-1)}, {"D", math.NaN()}},
	}}
	out, err := Build(table, []string{"prices"}, 20).JSON()
	require.NoError(t, err)
	assert.Contains(t, out, `"Price": 12.5`)
	assert.NotContains(t, out, "Inf")
	assert.NotContains(t, out, "NaN")

	var decoded struct {
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Records, 4)
	for _, r := range decoded.Records[1:] {
		assert.Contains(t, r, "Price")
		assert.Nil(t, r["Price"])
	}

	series := &executor.Result{Kind: executor.ScalarSeriesResult, Series: &plan.Series{
		Name:   "max",
		Index:  []any{"A", "B", "C"},
		Values: []any{math.Inf(1), math.NaN(), float32(math.Inf(-1))},
	}}
	rec, err := json.Marshal(Build(series, nil, 20).Records)
	require.NoError(t, err)
	assert.Equal(t, `{"A":null,"B":null,"C":null}`, string(rec))
}

func TestJSON_SumOverflow(t *testing.T) {
	prices, err := dataset.New("prices",
		[]dataset.Column{{Name: "Market", Type: dataset.TypeString}, {Name: "Price", Type: dataset.TypeFloat}},
		[][]any{{"A", 1e308}, {"A", 1e308}, {"B", 2.5}})
	require.NoError(t, err)
	reg, err := dataset.NewRegistry(prices)
	require.NoError(t, err)

	res, err := executor.New(reg, plan.Options{}, nil).Execute(context.Background(),
		`{"result": {"dataset": "prices", "ops": [
			{"op": "group", "by": ["Market"], "aggs": [{"fn": "sum", "column": "Price"}]}]}}`)
	require.NoError(t, err)

	out, err := Build(res, res.Datasets, 20).JSON()
	require.NoError(t, err)
	assert.Contains(t, out, `"Price_sum": null`)
	assert.Contains(t, out, `"Price_sum": 2.5`)
}
