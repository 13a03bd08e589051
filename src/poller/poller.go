// Package poller drives the periodic fetch/diff/emit cycle against the server.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/5l1v3r1/memsql-top/src/connection"
	"github.com/5l1v3r1/memsql-top/src/instance"
	"github.com/5l1v3r1/memsql-top/src/plancache"
)

// PlanCacheHandler receives the diffed plan cache metrics for one interval.
type PlanCacheHandler func(plancache.DiffResult)

// GaugeHandler receives a single scalar sample.
type GaugeHandler func(float64)

// Poller owns the retained plan cache snapshot and runs one fetch/diff/emit
// cycle per tick. All handlers are invoked synchronously on the polling
// goroutine, so no locking is needed around the snapshot.
type Poller struct {
	con      *connection.SQLConnection
	log      *logrus.Logger
	interval time.Duration

	snapshot plancache.Snapshot

	planCacheHandlers []PlanCacheHandler
	cpuUtilHandlers   []GaugeHandler
	memUsageHandlers  []GaugeHandler
}

// New creates a Poller and primes its retained snapshot so that the first
// timed poll produces real deltas instead of reporting counters accumulated
// since plan creation.
func New(con *connection.SQLConnection, log *logrus.Logger, interval time.Duration) (*Poller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("update interval must be positive, got %s", interval)
	}

	snapshot, err := plancache.FetchSnapshot(con)
	if err != nil {
		return nil, err
	}

	return &Poller{
		con:      con,
		log:      log,
		interval: interval,
		snapshot: snapshot,
	}, nil
}

// OnPlanCacheChanged registers a handler for per-plan interval metrics.
func (p *Poller) OnPlanCacheChanged(h PlanCacheHandler) {
	p.planCacheHandlers = append(p.planCacheHandlers, h)
}

// OnCpuUtilChanged registers a handler for total CPU utilization.
func (p *Poller) OnCpuUtilChanged(h GaugeHandler) {
	p.cpuUtilHandlers = append(p.cpuUtilHandlers, h)
}

// OnMemUsageChanged registers a handler for total server memory usage.
func (p *Poller) OnMemUsageChanged(h GaugeHandler) {
	p.memUsageHandlers = append(p.memUsageHandlers, h)
}

// Poll runs one sampling cycle: fetch a fresh snapshot, diff it against the
// retained one, emit plan cache and CPU utilization updates, then sample and
// emit server memory usage. The two sampling steps fail independently: a
// plan cache fetch error keeps the retained snapshot and skips only the
// first two emissions, a memory status error skips only the last one.
func (p *Poller) Poll() {
	if newSnapshot, err := plancache.FetchSnapshot(p.con); err != nil {
		p.log.Errorf("Could not fetch plan cache, keeping previous snapshot: %v", err)
	} else {
		diff := plancache.Diff(newSnapshot, p.snapshot, p.interval.Seconds())
		p.snapshot = newSnapshot

		for _, h := range p.planCacheHandlers {
			h(diff)
		}
		cpuUtil := diff.TotalCpuUtilization()
		for _, h := range p.cpuUtilHandlers {
			h(cpuUtil)
		}
	}

	memUsage, err := instance.TotalServerMemory(p.con)
	if err != nil {
		p.log.Warnf("Could not sample server memory: %v", err)
		return
	}
	for _, h := range p.memUsageHandlers {
		h(memUsage)
	}
}

// Run polls at the configured cadence until ctx is cancelled. Each cycle
// runs to completion before the next tick is taken, so a slow fetch delays
// the following poll rather than overlapping it.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Debug("Poller started")
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("Poller stopped")
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}
