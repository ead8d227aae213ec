package analytics

import (
	"slices"
	"time"

	"github.com/RiverSpider/PavelBot/internal/domain/models"

	"github.com/shopspring/decimal"
)

type dateKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time) dateKey {
	y, m, d := t.Date()
	return dateKey{year: y, month: m, day: d}
}

func (k dateKey) compare(o dateKey) int {
	switch {
	case k.year != o.year:
		return k.year - o.year
	case k.month != o.month:
		return int(k.month - o.month)
	default:
		return k.day - o.day
	}
}

// Aggregate groups operations by the calendar date of their timestamp, in
// the timestamp's own location. Buckets are unique per date and ascending;
// quiet days are not synthesized. Every operation counts towards its
// bucket, only capital-contributing categories move the deltas.
func Aggregate(ops []models.ClassifiedOperation) []models.DailyBucket {
	type slot struct {
		key    dateKey
		bucket models.DailyBucket
	}

	index := make(map[dateKey]int, len(ops))
	slots := make([]slot, 0)
	for _, op := range ops {
		k := keyOf(op.Timestamp)
		i, ok := index[k]
		if !ok {
			slots = append(slots, slot{
				key: k,
				bucket: models.DailyBucket{
					Date:         time.Date(k.year, k.month, k.day, 0, 0, 0, 0, op.Timestamp.Location()),
					CapitalDelta: decimal.Zero,
					IncomeDelta:  decimal.Zero,
				},
			})
			i = len(slots) - 1
			index[k] = i
		}

		b := &slots[i].bucket
		b.OperationCount++
		if op.Category.ContributesToCapital() {
			b.CapitalDelta = b.CapitalDelta.Add(op.Amount)
			b.IncomeDelta = b.IncomeDelta.Add(op.Amount)
		}
	}

	slices.SortFunc(slots, func(a, b slot) int { return a.key.compare(b.key) })

	out := make([]models.DailyBucket, len(slots))
	for i := range slots {
		out[i] = slots[i].bucket
	}
	return out
}

// CumulativeCapital is the prefix sum of CapitalDelta seeded at zero.
func CumulativeCapital(buckets []models.DailyBucket) []decimal.Decimal {
	return prefixSum(buckets, func(b models.DailyBucket) decimal.Decimal { return b.CapitalDelta })
}

// CumulativeIncome is the prefix sum of IncomeDelta seeded at zero.
func CumulativeIncome(buckets []models.DailyBucket) []decimal.Decimal {
	return prefixSum(buckets, func(b models.DailyBucket) decimal.Decimal { return b.IncomeDelta })
}

func prefixSum(buckets []models.DailyBucket, pick func(models.DailyBucket) decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(buckets))
	acc := decimal.Zero
	for i, b := range buckets {
		acc = acc.Add(pick(b))
		out[i] = acc
	}
	return out
}
