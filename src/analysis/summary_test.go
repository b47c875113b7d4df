package analysis

import (
	"math"
	"testing"
	"time"

	"mse-pipeline/src/analysis/core"
	"mse-pipeline/src/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sp(day int, last string, volume int64) models.MStockPrice {
	return models.MStockPrice{MPriceRow: models.MPriceRow{
		Date:           time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		LastTradePrice: decimal.RequireFromString(last),
		Volume:         volume,
	}}
}

func TestSummarize(t *testing.T) {
	s := Summarize("ALK", []models.MStockPrice{sp(3, "120", 30), sp(1, "100", 10), sp(2, "90", 20)})

	assert.Equal(t, 3, s.Count)
	require.NotNil(t, s.FirstDate)
	assert.Equal(t, 1, s.FirstDate.Day())
	assert.Equal(t, 3, s.LastDate.Day())
	assert.True(t, decimal.NewFromInt(100).Equal(s.FirstPrice))
	assert.True(t, decimal.NewFromInt(120).Equal(s.LastPrice))
	assert.True(t, decimal.NewFromInt(90).Equal(s.MinPrice))
	assert.True(t, decimal.NewFromInt(120).Equal(s.MaxPrice))
	assert.True(t, decimal.RequireFromString("103.33").Equal(s.MeanPrice))
	assert.True(t, decimal.NewFromInt(20).Equal(s.ChangePercent))
	assert.EqualValues(t, 60, s.TotalVolume)
	assert.InDelta(t, 20, s.MeanVolume, 1e-9)
	assert.InDelta(t, math.Sqrt(200.0/3), s.StdVolume, 1e-9)
	assert.Greater(t, s.LastVolumeZScore, 1.0)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("KMB", nil)
	assert.Equal(t, 0, s.Count)
	assert.Nil(t, s.FirstDate)
	assert.True(t, s.ChangePercent.IsZero())
}

func TestComputeRangeSkipsZeroPrices(t *testing.T) {
	r := core.ComputeRange([]decimal.Decimal{decimal.Zero, decimal.NewFromInt(5), decimal.Zero, decimal.NewFromInt(7)})
	assert.True(t, decimal.NewFromInt(5).Equal(r.First))
	assert.True(t, decimal.NewFromInt(5).Equal(r.Low))
	assert.True(t, decimal.NewFromInt(6).Equal(r.Mean))
}

func TestCorrelation(t *testing.T) {
	assert.InDelta(t, 1.0, core.CalculateCorrelation([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, -1.0, core.CalculateCorrelation([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-9)
	assert.Equal(t, 0.0, core.CalculateCorrelation([]float64{1, 1, 1}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, core.CalculateCorrelation([]float64{1}, []float64{1}))
}

func TestMeanStd(t *testing.T) {
	mean, std := core.CalculateMeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, mean, 1e-9)
	assert.InDelta(t, 2, std, 1e-9)

	mean, std = core.CalculateMeanStd(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}
