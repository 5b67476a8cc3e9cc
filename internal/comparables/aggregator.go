package comparables

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"propeval/server/internal/models"
)

// ErrAllSourcesFailed is returned when every configured connector failed; a
// partial failure with at least one healthy source still aggregates.
var ErrAllSourcesFailed = errors.New("all comparable sources failed")

// Aggregator merges comparables from one or more connectors and derives price
// statistics over the merged set.
type Aggregator struct {
	sources []Source
	timeout time.Duration
	logger  *logrus.Logger
}

func NewAggregator(logger *logrus.Logger, timeout time.Duration, sources ...Source) *Aggregator {
	return &Aggregator{
		sources: sources,
		timeout: timeout,
		logger:  logger,
	}
}

// Aggregate fetches from every source in turn, each under its own timeout
// budget, and merges the results. With no sources configured it returns an
// empty set so downstream rendering falls back to placeholders.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (*models.ComparableSet, error) {
	var merged []models.Comparable
	failures := 0

	for _, source := range a.sources {
		fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
		entries, err := source.Fetch(fetchCtx, q)
		cancel()

		if err != nil {
			failures++
			a.logger.WithError(err).WithField("source", source.Name()).Error("Comparable source failed")
			continue
		}
		merged = append(merged, entries...)
	}

	if len(a.sources) > 0 && failures == len(a.sources) {
		return nil, ErrAllSourcesFailed
	}

	set := &models.ComparableSet{
		Statistics: BuildStats(merged),
		Properties: merged,
	}

	a.logger.WithFields(logrus.Fields{
		"location":      q.Location,
		"sold_count":    set.Statistics.SoldCount,
		"listing_count": set.Statistics.ListingCount,
		"total_found":   set.Statistics.TotalFound,
	}).Info("Aggregated comparable properties")

	return set, nil
}

// BuildStats computes counts and the price range over entries with a known
// price. With zero entries the price range stays absent, never zeroed.
func BuildStats(entries []models.Comparable) models.ComparableStats {
	stats := models.ComparableStats{}

	var priced int
	var sum, min, max float64

	for _, e := range entries {
		if e.Status == "sold" {
			stats.SoldCount++
		} else {
			stats.ListingCount++
		}

		if e.Price == nil || *e.Price <= 0 {
			continue
		}
		price := *e.Price
		if priced == 0 || price < min {
			min = price
		}
		if priced == 0 || price > max {
			max = price
		}
		sum += price
		priced++
	}

	stats.TotalFound = stats.SoldCount + stats.ListingCount

	if priced > 0 {
		stats.PriceRange = &models.PriceRange{
			Min: min,
			Avg: sum / float64(priced),
			Max: max,
		}
	}

	return stats
}

// PricePerSqm returns price divided by size, or nil when either input is not
// strictly positive. It never returns zero or panics on missing inputs.
func PricePerSqm(price, size float64) *float64 {
	if price <= 0 || size <= 0 {
		return nil
	}
	v := price / size
	return &v
}
