package query

import (
	"context"
	"database/sql"
	"fmt"
)

// TermFacet is one value and its matching-document count for a term facet.
type TermFacet struct {
	Value string
	Count int
}

// DateBucket is one interval of a date-histogram facet.
type DateBucket string

const (
	BucketDay   DateBucket = "day"
	BucketWeek  DateBucket = "week"
	BucketMonth DateBucket = "month"
)

// DateHistogramEntry is one populated bucket of a date-histogram facet.
type DateHistogramEntry struct {
	BucketStart string // ISO-8601 truncated to the bucket's granularity
	Count       int
}

// SizeRangeFacet buckets hits by content size into three fixed tiers.
type SizeRangeFacet struct {
	Under10MB  int
	Under100MB int
	Over100MB  int
}

const (
	bytes10MB  = 10 * 1024 * 1024
	bytes100MB = 100 * 1024 * 1024
)

// FacetService computes aggregation-based facets over the projection,
// applying the same filter a search would before grouping.
type FacetService struct {
	db *sql.DB
}

// NewFacetService builds a FacetService.
func NewFacetService(db *sql.DB) *FacetService {
	return &FacetService{db: db}
}

// MimeFacet returns the top-20 mime values among filtered rows.
func (s *FacetService) MimeFacet(ctx context.Context, filter Filter) ([]TermFacet, error) {
	clauses, args := filterClauses(filter)
	query := "SELECT mime, COUNT(*) FROM search_document sd" + whereClause(clauses) + " GROUP BY mime ORDER BY COUNT(*) DESC LIMIT 20"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mime facet query: %w", err)
	}
	defer rows.Close()

	var out []TermFacet
	for rows.Next() {
		var f TermFacet
		if err := rows.Scan(&f.Value, &f.Count); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ModifiedHistogram buckets matching rows by modified_utc at the given
// granularity.
func (s *FacetService) ModifiedHistogram(ctx context.Context, filter Filter, bucket DateBucket) ([]DateHistogramEntry, error) {
	clauses, args := filterClauses(filter)

	var truncate string
	switch bucket {
	case BucketWeek:
		truncate = "strftime('%Y-W%W', sd.modified_utc)"
	case BucketMonth:
		truncate = "strftime('%Y-%m', sd.modified_utc)"
	default:
		truncate = "strftime('%Y-%m-%d', sd.modified_utc)"
	}

	query := fmt.Sprintf("SELECT %s AS bucket, COUNT(*) FROM search_document sd%s GROUP BY bucket ORDER BY bucket ASC", truncate, whereClause(clauses))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("date histogram query: %w", err)
	}
	defer rows.Close()

	var out []DateHistogramEntry
	for rows.Next() {
		var e DateHistogramEntry
		if err := rows.Scan(&e.BucketStart, &e.Count); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SizeFacet buckets matching rows into the fixed 0-10MB/10-100MB/>100MB
// tiers; rows with no recorded size are excluded.
func (s *FacetService) SizeFacet(ctx context.Context, filter Filter) (SizeRangeFacet, error) {
	clauses, args := filterClauses(filter)
	clause := whereClause(clauses)
	if clause == "" {
		clause = " WHERE content_size_bytes IS NOT NULL"
	} else {
		clause += " AND content_size_bytes IS NOT NULL"
	}

	query := fmt.Sprintf(`
		SELECT
			SUM(CASE WHEN content_size_bytes < %d THEN 1 ELSE 0 END),
			SUM(CASE WHEN content_size_bytes >= %d AND content_size_bytes < %d THEN 1 ELSE 0 END),
			SUM(CASE WHEN content_size_bytes >= %d THEN 1 ELSE 0 END)
		FROM search_document sd%s
	`, bytes10MB, bytes10MB, bytes100MB, bytes100MB, clause)

	var under10, under100, over100 sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&under10, &under100, &over100)
	if err != nil {
		return SizeRangeFacet{}, fmt.Errorf("size facet query: %w", err)
	}
	return SizeRangeFacet{
		Under10MB:  int(under10.Int64),
		Under100MB: int(under100.Int64),
		Over100MB:  int(over100.Int64),
	}, nil
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	out := " WHERE "
	for i, c := range clauses {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out
}
