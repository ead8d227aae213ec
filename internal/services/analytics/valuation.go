package analytics

import (
	"strings"

	"github.com/RiverSpider/PavelBot/internal/domain/models"

	"github.com/shopspring/decimal"
)

var typeBuckets = map[string]models.PositionBucket{
	"share":    models.BucketStock,
	"bond":     models.BucketBond,
	"etf":      models.BucketETF,
	"currency": models.BucketCurrency,

	"futures":              models.BucketOther,
	"option":               models.BucketOther,
	"sp":                   models.BucketOther,
	"commodity":            models.BucketOther,
	"clearing_certificate": models.BucketOther,
}

// nameHints are matched against the lower-cased localized instrument name
// when the type tag is missing or unknown.
var nameHints = []struct {
	hint   string
	bucket models.PositionBucket
}{
	{hint: "акция", bucket: models.BucketStock},
	{hint: "облигация", bucket: models.BucketBond},
	{hint: "фонд", bucket: models.BucketETF},
}

// BucketOf assigns p to a display bucket. The instrument type tag wins; the
// name is only consulted when the tag is absent or unrecognized.
func BucketOf(p models.Position) models.PositionBucket {
	tag := strings.ToLower(strings.TrimSpace(p.Type))
	if b, ok := typeBuckets[tag]; ok {
		return b
	}

	name := strings.ToLower(p.Name)
	for _, h := range nameHints {
		if strings.Contains(name, h.hint) {
			return h.bucket
		}
	}
	return models.BucketOther
}

// Valuate recomputes each position value as price * quantity and groups the
// positions by bucket. The fetch report is left to the caller.
func Valuate(positions []models.Position) models.PortfolioValuation {
	v := models.PortfolioValuation{
		TotalValue: decimal.Zero,
		Positions:  make([]models.Position, 0, len(positions)),
		Buckets:    make(map[models.PositionBucket][]models.Position),
		Totals:     make(map[models.PositionBucket]decimal.Decimal),
	}

	for _, p := range positions {
		p.Value = p.CurrentPrice.Mul(p.Quantity)
		v.TotalValue = v.TotalValue.Add(p.Value)
		v.Positions = append(v.Positions, p)

		b := BucketOf(p)
		v.Buckets[b] = append(v.Buckets[b], p)
		v.Totals[b] = v.Totals[b].Add(p.Value)
	}
	return v
}
