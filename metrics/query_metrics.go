/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query metrics
var (
	// Queries counts executed queries by outcome (ok, truncated, error)
	Queries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eliasgraph_queries_total",
			Help: "Total number of executed queries by outcome",
		},
		[]string{"outcome"},
	)

	// QueryRows counts produced result rows
	QueryRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliasgraph_query_rows_total",
			Help: "Total number of result rows produced by queries",
		},
	)

	// QueryTruncations counts truncated queries by exceeded limit
	QueryTruncations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eliasgraph_query_truncations_total",
			Help: "Total number of queries which were truncated by their budget",
		},
		[]string{"limit"},
	)

	// QuerySkippedRows counts rows skipped because of predicate errors
	QuerySkippedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliasgraph_query_skipped_rows_total",
			Help: "Total number of rows skipped because of evaluation errors",
		},
	)

	// QueryErrors counts queries rejected by the compiler by category
	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eliasgraph_query_errors_total",
			Help: "Total number of rejected queries by error category",
		},
		[]string{"category"},
	)

	// QuerySeconds measures query execution time
	QuerySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eliasgraph_query_seconds",
			Help:    "Duration of query executions",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PlanCacheRequests counts plan cache accesses by result (hit, miss)
	PlanCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eliasgraph_plan_cache_requests_total",
			Help: "Total number of compiled plan cache accesses by result",
		},
		[]string{"result"},
	)
)
