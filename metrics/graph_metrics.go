/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package metrics contains the Prometheus collectors of the graph engine.

All collectors are registered with the default registry when the package is
loaded. An application can expose them with promhttp.Handler().
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transaction metrics
var (
	// Commits counts committed transactions
	Commits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliasgraph_commits_total",
			Help: "Total number of committed transactions",
		},
	)

	// TransactionAborts counts aborted transactions by reason
	TransactionAborts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eliasgraph_transaction_aborts_total",
			Help: "Total number of aborted transactions by reason (rollback, conflict, io, timeout)",
		},
		[]string{"reason"},
	)

	// ActiveTransactions tracks the number of active transactions
	ActiveTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eliasgraph_active_transactions",
			Help: "Number of currently active transactions",
		},
	)

	// CollectedVersions counts entity versions removed by the garbage collection
	CollectedVersions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliasgraph_collected_versions_total",
			Help: "Total number of superseded entity versions which were removed",
		},
	)
)

// Write-ahead log metrics
var (
	// WALBytes counts bytes written to the write-ahead log
	WALBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliasgraph_wal_bytes_total",
			Help: "Total number of bytes written to the write-ahead log",
		},
	)

	// WALSyncSeconds measures the duration of log syncs
	WALSyncSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eliasgraph_wal_sync_seconds",
			Help:    "Duration of write-ahead log syncs",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	// Checkpoints counts written checkpoints
	Checkpoints = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eliasgraph_checkpoints_total",
			Help: "Total number of written checkpoints",
		},
	)

	// SnapshotBytes tracks the compressed size of the last snapshot
	SnapshotBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eliasgraph_snapshot_bytes",
			Help: "Compressed size of the last written graph snapshot",
		},
	)
)

// Index metrics
var (
	// IndexLookups counts index accesses by index kind
	IndexLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eliasgraph_index_lookups_total",
			Help: "Total number of index accesses by index kind",
		},
		[]string{"kind"},
	)
)
