// Copyright 2025 Oddsworks
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	marketsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bfdb",
		Name:      "markets_processed_total",
		Help:      "Markets settled by the indexing pipeline, by outcome.",
	}, []string{"outcome"})

	definitionsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bfdb",
		Name:      "definitions_recovered_total",
		Help:      "Metadata files recovered from stream market definitions.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bfdb",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of pipeline runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

func observeCounters(c Counters) {
	marketsProcessed.WithLabelValues("inserted").Add(float64(c.Inserted))
	marketsProcessed.WithLabelValues("skipped").Add(float64(c.Skipped))
	marketsProcessed.WithLabelValues("corrupt").Add(float64(c.Corrupt))
	marketsProcessed.WithLabelValues("missing_data").Add(float64(c.MissingData))
	marketsProcessed.WithLabelValues("missing_metadata").Add(float64(c.MissingMetadata))
}
