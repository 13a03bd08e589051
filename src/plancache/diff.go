package plancache

// IntervalMetrics is one plan's normalized activity over a polling interval.
type IntervalMetrics struct {
	Database string
	Query    string

	ExecutionsPerSec float64
	RowsPerSec       float64

	// CpuUtilization is the fraction of one core-second consumed per second.
	CpuUtilization float64

	ExecutionTimePerQuery float64 // microseconds
	MemoryPerQuery        float64 // bytes
	QueuedTimePerQuery    float64 // microseconds
}

// DiffResult maps plan hashes to their normalized metrics for one interval.
type DiffResult map[PlanHash]IntervalMetrics

func normalize(interval float64, databaseName, queryText string,
	commits, rowcount, executionTime, cpuTime, memoryUse, queuedTime int64) IntervalMetrics {
	return IntervalMetrics{
		Database:              databaseName,
		Query:                 queryText,
		ExecutionsPerSec:      float64(commits) / interval,
		RowsPerSec:            float64(rowcount) / interval,
		CpuUtilization:        float64(cpuTime) / 1000.0 / interval,
		ExecutionTimePerQuery: float64(executionTime) / float64(commits),
		MemoryPerQuery:        float64(memoryUse) / float64(commits),
		QueuedTimePerQuery:    float64(queuedTime) / float64(commits),
	}
}

// Diff computes per-interval metrics for every plan that committed work
// between oldSnapshot and newSnapshot. interval is the elapsed seconds
// between the two snapshots and must be positive; the caller validates it
// once at setup.
//
// Entries are gated on the commit delta: a plan only appears in the result
// when it committed at least one execution this interval. That single filter
// drops unchanged plans, plans whose counters went backwards (the entry was
// replaced server-side), and makes every per-query division safe. Plans
// present only in oldSnapshot were evicted and are skipped silently.
func Diff(newSnapshot, oldSnapshot Snapshot, interval float64) DiffResult {
	diff := make(DiffResult)
	for key, n := range newSnapshot {
		o, known := oldSnapshot[key]
		if !known {
			// A plan cache entry can exist with zero commits: a slow query
			// that has not yet completed, or a query that only errors.
			if n.Commits > 0 {
				diff[key] = normalize(interval, n.DatabaseName, n.QueryText,
					n.Commits, n.Rowcount, n.ExecutionTime,
					n.CpuTime, n.MemoryUse, n.QueuedTime)
			}
			continue
		}
		if n.Commits-o.Commits > 0 {
			diff[key] = normalize(interval, n.DatabaseName, n.QueryText,
				n.Commits-o.Commits, n.Rowcount-o.Rowcount,
				n.ExecutionTime-o.ExecutionTime, n.CpuTime-o.CpuTime,
				n.MemoryUse-o.MemoryUse, n.QueuedTime-o.QueuedTime)
		}
	}
	return diff
}

// TotalCpuUtilization sums CpuUtilization over every plan in the result,
// giving a single cluster-load figure for the interval.
func (d DiffResult) TotalCpuUtilization() float64 {
	var sum float64
	for _, m := range d {
		sum += m.CpuUtilization
	}
	return sum
}
