package scraper

import (
	"testing"
	"time"

	"mse-pipeline/src/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPartitionJanuaryToMidFebruary(t *testing.T) {
	chunks, err := Partition("ALK", date(2024, 1, 1), date(2024, 2, 15), 30)
	require.NoError(t, err)

	require.Equal(
		t,
		"",
		cmp.Diff(
			[]models.MDateChunk{
				{Symbol: "ALK", FromDate: date(2024, 1, 1), ToDate: date(2024, 1, 31)},
				{Symbol: "ALK", FromDate: date(2024, 2, 1), ToDate: date(2024, 2, 15)},
			},
			chunks,
		),
	)
}

func TestPartitionCoversEveryDayOnce(t *testing.T) {
	starts := []time.Time{date(2014, 1, 1), date(2020, 2, 28), date(2023, 12, 31)}
	spans := []int{0, 1, 29, 30, 31, 61, 365, 1000}

	for _, from := range starts {
		for _, span := range spans {
			to := from.AddDate(0, 0, span)
			chunks, err := Partition("KMB", from, to, 30)
			require.NoError(t, err)

			seen := map[time.Time]int{}
			for i, c := range chunks {
				assert.LessOrEqual(t, c.Days(), 31, "chunk %d too wide", i)
				assert.False(t, c.FromDate.After(c.ToDate))
				if i > 0 {
					assert.Equal(t, chunks[i-1].ToDate.AddDate(0, 0, 1), c.FromDate, "gap or overlap at %d", i)
				}
				for d := c.FromDate; !d.After(c.ToDate); d = d.AddDate(0, 0, 1) {
					seen[d]++
				}
			}

			assert.Len(t, seen, span+1)
			for d, n := range seen {
				assert.Equal(t, 1, n, "day %s covered %d times", d, n)
			}
			assert.Equal(t, from, chunks[0].FromDate)
			assert.Equal(t, to, chunks[len(chunks)-1].ToDate)
		}
	}
}

func TestPartitionSingleDay(t *testing.T) {
	chunks, err := Partition("TEL", date(2024, 3, 1), date(2024, 3, 1), 30)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Days())
}

func TestPartitionRejectsInvertedRange(t *testing.T) {
	_, err := Partition("TEL", date(2024, 3, 2), date(2024, 3, 1), 30)
	assert.Error(t, err)
}

func TestPartitionIgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC)
	to := time.Date(2024, 1, 10, 1, 0, 0, 0, time.UTC)
	chunks, err := Partition("TEL", from, to, 30)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 10, chunks[0].Days())
}

func TestFormatSiteDate(t *testing.T) {
	assert.Equal(t, "3/7/2024", FormatSiteDate(date(2024, 3, 7)))
	assert.Equal(t, "12/31/2023", FormatSiteDate(date(2023, 12, 31)))
}
