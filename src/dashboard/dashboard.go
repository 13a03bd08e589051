// Package dashboard renders the live top-style query activity table.
package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uilive"

	"github.com/5l1v3r1/memsql-top/src/plancache"
	"github.com/5l1v3r1/memsql-top/src/poller"
)

const queryColumnWidth = 44

// Dashboard holds the latest emitted samples and repaints the terminal in
// place whenever one of them changes. It is only ever driven from the
// polling goroutine.
type Dashboard struct {
	writer *uilive.Writer
	limit  int

	diff     plancache.DiffResult
	cpuUtil  float64
	memUsage float64
}

// New creates a Dashboard showing at most limit query rows.
func New(limit int) *Dashboard {
	return &Dashboard{
		writer: uilive.New(),
		limit:  limit,
	}
}

// Attach subscribes the dashboard to all three poller events.
func (d *Dashboard) Attach(p *poller.Poller) {
	p.OnPlanCacheChanged(d.HandlePlanCache)
	p.OnCpuUtilChanged(d.HandleCpuUtil)
	p.OnMemUsageChanged(d.HandleMemUsage)
}

// HandlePlanCache receives the per-plan metrics for the latest interval.
func (d *Dashboard) HandlePlanCache(diff plancache.DiffResult) {
	d.diff = diff
	d.render()
}

// HandleCpuUtil receives the cluster CPU utilization for the latest interval.
func (d *Dashboard) HandleCpuUtil(cpuUtil float64) {
	d.cpuUtil = cpuUtil
	d.render()
}

// HandleMemUsage receives the server memory sample in megabytes.
func (d *Dashboard) HandleMemUsage(memUsage float64) {
	d.memUsage = memUsage
	d.render()
}

// topRows flattens the diff into a slice sorted by CPU utilization, busiest
// first, capped at limit. Ties fall back to query text so the display order
// is stable between repaints.
func topRows(diff plancache.DiffResult, limit int) []plancache.IntervalMetrics {
	rows := make([]plancache.IntervalMetrics, 0, len(diff))
	for _, m := range diff {
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CpuUtilization != rows[j].CpuUtilization {
			return rows[i].CpuUtilization > rows[j].CpuUtilization
		}
		return rows[i].Query < rows[j].Query
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// collapseQuery squeezes runs of whitespace out of the query text and
// truncates it to the column width.
func collapseQuery(query string, width int) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > width {
		return query[:width-3] + "..."
	}
	return query
}

// formatBytes renders a per-query byte figure. Negative values can show up
// after a partial counter reset and are printed raw.
func formatBytes(v float64) string {
	if v < 0 {
		return fmt.Sprintf("%.0f B", v)
	}
	return humanize.IBytes(uint64(v))
}

func (d *Dashboard) render() {
	var b strings.Builder

	fmt.Fprintln(&b, color.CyanString("cluster cpu util %5.1f%%   total server memory %s MB",
		d.cpuUtil*100, humanize.Commaf(d.memUsage)))
	fmt.Fprintln(&b, color.New(color.Bold).Sprintf("%-16s %-*s %9s %9s %8s %12s %10s %12s",
		"Database", queryColumnWidth, "Query",
		"Exec/s", "Rows/s", "CpuUtil", "Time/query", "Mem/query", "Queue/query"))

	for _, m := range topRows(d.diff, d.limit) {
		fmt.Fprintf(&b, "%-16s %-*s %9.1f %9.1f %7.1f%% %10.1fms %10s %10.1fms\n",
			m.Database, queryColumnWidth, collapseQuery(m.Query, queryColumnWidth),
			m.ExecutionsPerSec, m.RowsPerSec, m.CpuUtilization*100,
			m.ExecutionTimePerQuery/1000.0,
			formatBytes(m.MemoryPerQuery),
			m.QueuedTimePerQuery/1000.0)
	}

	fmt.Fprint(d.writer, b.String())
	_ = d.writer.Flush()
}
