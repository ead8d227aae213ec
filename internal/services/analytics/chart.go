package analytics

import (
	"github.com/RiverSpider/PavelBot/internal/domain/models"

	"github.com/shopspring/decimal"
)

// BuildChart turns daily buckets into the named series of the requested
// view. An empty bucket sequence produces NoData and no series.
func BuildChart(kind models.ChartKind, buckets []models.DailyBucket) models.ChartData {
	data := models.ChartData{Kind: kind}
	if len(buckets) == 0 {
		data.NoData = true
		return data
	}

	switch kind {
	case models.ChartIncome:
		data.Series = []models.ChartSeries{
			series(models.SeriesCumulativeIncome, buckets, CumulativeIncome(buckets)),
			series(models.SeriesDailyIncome, buckets, pluck(buckets, func(b models.DailyBucket) decimal.Decimal { return b.IncomeDelta })),
		}
	default:
		data.Kind = models.ChartCapital
		data.Series = []models.ChartSeries{
			series(models.SeriesCumulativeCapital, buckets, CumulativeCapital(buckets)),
			series(models.SeriesDailyCapital, buckets, pluck(buckets, func(b models.DailyBucket) decimal.Decimal { return b.CapitalDelta })),
		}
	}
	return data
}

func pluck(buckets []models.DailyBucket, pick func(models.DailyBucket) decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(buckets))
	for i, b := range buckets {
		out[i] = pick(b)
	}
	return out
}

func series(name string, buckets []models.DailyBucket, values []decimal.Decimal) models.ChartSeries {
	points := make([]models.ChartPoint, len(buckets))
	for i, b := range buckets {
		points[i] = models.ChartPoint{Date: b.Date, Value: values[i]}
	}
	return models.ChartSeries{Name: name, Points: points}
}
