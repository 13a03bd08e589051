// Package plancache samples the cumulative plan cache counters of a MemSQL
// cluster and diffs consecutive samples into per-interval rates.
package plancache

import (
	"fmt"

	"github.com/5l1v3r1/memsql-top/src/connection"
)

// PlanHash is the stable identity of a query execution plan across polls.
type PlanHash string

// CounterRecord is one plan's cumulative counters as reported by the server.
// Every counter is cumulative since the plan cache entry was created; the
// server may replace an entry at any time, resetting its counters.
type CounterRecord struct {
	DatabaseName  string `db:"database_name"`
	QueryText     string `db:"query_text"`
	PlanHash      string `db:"plan_hash"`
	Commits       int64  `db:"commits"`
	Rowcount      int64  `db:"rowcount"`
	ExecutionTime int64  `db:"execution_time"` // microseconds
	QueuedTime    int64  `db:"queued_time"`    // microseconds
	CpuTime       int64  `db:"cpu_time"`       // milliseconds
	MemoryUse     int64  `db:"memory_use"`     // bytes
}

// Snapshot is the plan cache counter state at one point in time. A snapshot
// is never mutated after FetchSnapshot returns it.
type Snapshot map[PlanHash]CounterRecord

// Plans with a null plan_hash are leaf queries with no corresponding
// aggregator entry and cannot be diffed, so they are excluded up front.
// The query is kept as a single literal so result rows carrying it as their
// query_text can be recognized and filtered out below.
const snapshotQuery = "select database_name, query_text, plan_hash, " +
	"IFNULL(commits, 0) as commits, " +
	"IFNULL(rowcount, 0) as rowcount, " +
	"IFNULL(execution_time, 0) as execution_time, " +
	"IFNULL(queued_time, 0) as queued_time, " +
	"IFNULL(cpu_time, 0) as cpu_time, " +
	"IFNULL(memory_use, 0) as memory_use " +
	"from distributed_plancache_summary " +
	"where plan_hash is not null"

// FetchSnapshot reads the current plan cache counter state. The monitoring
// query itself shows up in the plan cache; its row is dropped so the tool
// does not report its own polling activity.
func FetchSnapshot(con *connection.SQLConnection) (Snapshot, error) {
	rows := make([]CounterRecord, 0)
	if err := con.Query(&rows, snapshotQuery); err != nil {
		return nil, fmt.Errorf("fetch plan cache: %w", err)
	}

	snapshot := make(Snapshot, len(rows))
	for _, row := range rows {
		if row.QueryText == snapshotQuery {
			continue
		}
		snapshot[PlanHash(row.PlanHash)] = row
	}
	return snapshot, nil
}
