package analysis

import (
	"sort"

	"mse-pipeline/src/analysis/core"
	"mse-pipeline/src/models"

	"github.com/shopspring/decimal"
)

// Summarize describes a stored series. prices need not be sorted.
func Summarize(code string, prices []models.MStockPrice) *models.MPriceSummary {
	s := &models.MPriceSummary{Code: code, Count: len(prices)}
	if len(prices) == 0 {
		return s
	}

	sorted := make([]models.MStockPrice, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	first, last := sorted[0].Date, sorted[len(sorted)-1].Date
	s.FirstDate, s.LastDate = &first, &last

	closes := make([]decimal.Decimal, len(sorted))
	priceF := make([]float64, len(sorted))
	volumes := make([]float64, len(sorted))
	for i, p := range sorted {
		closes[i] = p.LastTradePrice
		priceF[i] = p.LastTradePrice.InexactFloat64()
		volumes[i] = float64(p.Volume)
		s.TotalVolume += p.Volume
	}

	r := core.ComputeRange(closes)
	s.FirstPrice, s.LastPrice = r.First, r.Last
	s.MinPrice, s.MaxPrice, s.MeanPrice = r.Low, r.High, r.Mean
	s.ChangePercent = core.CalculateChangePercent(r.Last, r.First)

	s.MeanVolume, s.StdVolume = core.CalculateMeanStd(volumes)
	s.LastVolumeZScore = core.CalculateZScore(volumes[len(volumes)-1], s.MeanVolume, s.StdVolume)
	s.PriceVolumeCorrelation = core.CalculateCorrelation(priceF, volumes)
	return s
}
