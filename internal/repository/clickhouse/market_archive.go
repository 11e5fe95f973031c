package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"janus/internal/domain/calendar"
	"janus/internal/domain/reaction"
	"janus/pkg/errors"
)

// MarketArchive stores the merged daily rows the backfill engine assembles
// around each occurrence. The reaction cache is the source of truth for
// per-occurrence stats; the archive exists for cross-occurrence rollups
// (realized range, research queries) that are cheap in ClickHouse and
// awkward against per-key JSON blobs.
type MarketArchive struct {
	conn driver.Conn
}

// NewMarketArchive creates a new market-row archive
func NewMarketArchive(conn driver.Conn) *MarketArchive {
	return &MarketArchive{conn: conn}
}

// InsertRows archives the merged series of one occurrence.
// The table is a ReplacingMergeTree keyed on (event_key, occurrence_date,
// row_date), so re-running a backfill overwrites rather than duplicates.
func (a *MarketArchive) InsertRows(ctx context.Context, rec *reaction.Record) error {
	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO event_market_rows (
			event_key, occurrence_date, row_date,
			open, high, low, close,
			open_interest, funding_rate, collected_at
		)`)
	if err != nil {
		return errors.Wrap(err, "prepare market rows batch")
	}

	occurrenceDate, err := time.Parse("2006-01-02", rec.OccurrenceDate)
	if err != nil {
		return errors.Wrapf(err, "parse occurrence date %s", rec.OccurrenceDate)
	}

	for _, p := range rec.PriceSeries {
		rowDate, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return errors.Wrapf(err, "parse row date %s", p.Date)
		}

		if err := batch.Append(
			string(rec.EventKey),
			occurrenceDate,
			rowDate,
			p.Open,
			p.High,
			p.Low,
			p.Close,
			p.OpenInterest,
			p.FundingRate,
			rec.ComputedAt,
		); err != nil {
			return errors.Wrap(err, "append market row")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "send market rows batch")
	}

	return nil
}

// AverageRealizedRange computes the mean intraday range (high-low over
// close) across archived occurrence days of one event type
func (a *MarketArchive) AverageRealizedRange(ctx context.Context, eventKey calendar.EventType, from, to time.Time) (float64, uint64, error) {
	query := `
		SELECT avg((high - low) / close) AS avg_range, count() AS rows
		FROM event_market_rows
		WHERE event_key = ? AND row_date = occurrence_date
		  AND occurrence_date >= ? AND occurrence_date <= ?`

	row := a.conn.QueryRow(ctx, query, string(eventKey), from.UTC(), to.UTC())

	var avgRange float64
	var count uint64
	if err := row.Scan(&avgRange, &count); err != nil {
		return 0, 0, errors.Wrap(err, "query realized range")
	}

	return avgRange, count, nil
}

// GetRows retrieves archived rows for one occurrence, oldest first
func (a *MarketArchive) GetRows(ctx context.Context, eventKey calendar.EventType, occurrenceDate string) ([]reaction.PricePoint, error) {
	day, err := time.Parse("2006-01-02", occurrenceDate)
	if err != nil {
		return nil, errors.Wrapf(err, "parse occurrence date %s", occurrenceDate)
	}

	query := `
		SELECT row_date, open, high, low, close, open_interest, funding_rate
		FROM event_market_rows FINAL
		WHERE event_key = ? AND occurrence_date = ?
		ORDER BY row_date ASC`

	rows, err := a.conn.Query(ctx, query, string(eventKey), day)
	if err != nil {
		return nil, errors.Wrap(err, "query market rows")
	}
	defer rows.Close()

	var points []reaction.PricePoint
	for rows.Next() {
		var rowDate time.Time
		var p reaction.PricePoint

		if err := rows.Scan(&rowDate, &p.Open, &p.High, &p.Low, &p.Close, &p.OpenInterest, &p.FundingRate); err != nil {
			return nil, errors.Wrap(err, "scan market row")
		}

		p.Date = rowDate.UTC().Format("2006-01-02")
		points = append(points, p)
	}

	return points, nil
}
