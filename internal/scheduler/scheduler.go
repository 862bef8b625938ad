// Package scheduler drives a unit graph to completion over a bounded
// worker pool, honoring dependency order and fail-fast/keep-going
// semantics: one producer loads jobs onto a worker pool, each worker
// blocks on a per-dependency broadcast channel closed by a single
// synchronizer goroutine that drains results and decides whether to keep
// dispatching after a failure.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	workerLib "github.com/jimmysawczuk/worker"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/vikramraodp/forge/internal/metrics"
	"github.com/vikramraodp/forge/internal/ui"
	"github.com/vikramraodp/forge/internal/unitgraph"
)

// State is a Unit's position in the scheduler's lifecycle.
type State int

// The states a Unit passes through.
const (
	Pending State = iota
	Queued
	Running
	Finished
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Executor performs the actual work a Unit represents (spawning the
// compiler, running a custom build script) and reports any directives it
// produced. Concrete implementations live in internal/core.
type Executor interface {
	Execute(ctx context.Context, u unitgraph.Unit) (Directives, error)
}

// Result is what a worker reports back to the synchronizer for one Unit.
type Result struct {
	Unit       unitgraph.Unit
	Directives Directives
	Err        error
}

// Scheduler owns a unit graph's execution: per-unit state, dependency
// broadcast channels, and a worker pool bounded by Jobs.
type Scheduler struct {
	graph      *unitgraph.Graph
	executor   Executor
	jobs       int
	noFailFast bool
	metrics    *metrics.Recorder
	log        *ui.Logger

	mu     sync.Mutex
	state  map[string]State
	signal map[string]chan struct{} // closed once the keyed Unit has finished, failed or been skipped
}

// New builds a Scheduler for graph. jobs bounds worker concurrency;
// noFailFast selects keep-going semantics.
func New(graph *unitgraph.Graph, executor Executor, jobs int, noFailFast bool, rec *metrics.Recorder, log *ui.Logger) *Scheduler {
	s := &Scheduler{
		graph: graph, executor: executor, jobs: jobs, noFailFast: noFailFast,
		metrics: rec, log: log,
		state:  map[string]State{},
		signal: map[string]chan struct{}{},
	}
	for _, u := range graph.AllUnits() {
		s.state[u.Key()] = Pending
		s.signal[u.Key()] = make(chan struct{})
	}
	return s
}

type schedJob struct {
	unit   unitgraph.Unit
	s      *Scheduler
	doneCh chan<- Result
	killCh <-chan struct{}
}

// Run implements workerLib.Package: wait for every dependency's signal
// channel (or a kill signal), then execute the Unit and report the result.
func (j schedJob) Run() {
	s := j.s
	key := j.unit.Key()

	waitSeries := fmt.Sprintf("build::wait::%s", key)
	runSeries := fmt.Sprintf("build::run::%s", key)
	s.metrics.Stamp(waitSeries, "start")

	s.setState(key, Queued)
	for _, dep := range j.s.graph.Edges[key] {
		depKey := dep.Key()
		select {
		case <-j.killCh:
			s.metrics.Stamp(waitSeries, "done")
			j.doneCh <- Result{Unit: j.unit, Err: errAborted}
			return
		case <-s.signal[depKey]:
			if st := s.State(depKey); st == Failed || st == Skipped {
				s.metrics.Stamp(waitSeries, "done")
				j.doneCh <- Result{Unit: j.unit, Err: errSkipped}
				return
			}
		}
	}
	select {
	case <-j.killCh:
		s.metrics.Stamp(waitSeries, "done")
		j.doneCh <- Result{Unit: j.unit, Err: errAborted}
		return
	default:
	}
	s.metrics.Stamp(waitSeries, "done")
	s.metrics.Stamp(runSeries, "start")

	s.setState(key, Running)
	if s.log != nil {
		s.log.Infof("compiling %s", key)
	}

	directives, err := s.executor.Execute(context.Background(), j.unit)

	s.metrics.Stamp(runSeries, "done")

	j.doneCh <- Result{Unit: j.unit, Directives: directives, Err: err}
}

var (
	errAborted = fmt.Errorf("build cancelled")
	errSkipped = fmt.Errorf("skipped: a dependency failed")
)

func (s *Scheduler) setState(key string, st State) {
	s.mu.Lock()
	s.state[key] = st
	s.mu.Unlock()
}

// State reports the current lifecycle state of the Unit identified by key.
func (s *Scheduler) State(key string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[key]
}

// Run dispatches every Unit in dependency order and blocks until all have
// finished, failed, or been skipped. On fail-fast (the default) it returns
// the first error and lets already-running Units finish; with noFailFast
// it marks every transitive dependent of a failed Unit Skipped, keeps
// dispatching unrelated Units, and returns an aggregate error.
func (s *Scheduler) Run(ctx context.Context) error {
	units := orderedUnits(s.graph)
	if len(units) == 0 {
		return nil
	}

	doneCh := make(chan Result)
	killCh := make(chan struct{})

	workerLib.MaxJobs = s.jobs
	pool := workerLib.NewWorker()
	for _, u := range units {
		pool.Add(schedJob{unit: u, s: s, doneCh: doneCh, killCh: killCh})
	}

	go func() {
		pool.RunUntilDone()
		close(doneCh)
	}()

	dependents := reverseEdges(s.graph)
	var firstErr error
	var aggregate *multierror.Error
	killed := false

	for result := range doneCh {
		key := result.Unit.Key()
		if result.Err == nil {
			s.setState(key, Finished)
			close(s.signal[key])
			if s.log != nil {
				s.log.Infof("finished %s", key)
			}
			continue
		}
		if result.Err == errSkipped {
			s.setState(key, Skipped)
			close(s.signal[key])
			continue
		}

		s.setState(key, Failed)
		close(s.signal[key])
		if s.log != nil {
			s.log.Errorf("failed %s: %v", key, result.Err)
		}

		if firstErr == nil {
			firstErr = result.Err
		}
		aggregate = multierror.Append(aggregate, fmt.Errorf("%s: %w", key, result.Err))

		if !s.noFailFast {
			if !killed {
				close(killCh)
				killed = true
			}
			continue
		}

		s.skipDependents(key, dependents)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if s.noFailFast {
		if aggregate != nil {
			return aggregate.ErrorOrNil()
		}
		return nil
	}
	return firstErr
}

// skipDependents marks every not-yet-started Unit transitively depending
// on failedKey as Skipped. Each such Unit's own job still runs, finds a
// failed or skipped dependency and reports errSkipped, and Run closes its
// signal channel then, so every channel is closed exactly once.
func (s *Scheduler) skipDependents(failedKey string, dependents map[string][]string) {
	var walk func(key string)
	seen := map[string]bool{}
	walk = func(key string) {
		for _, dep := range dependents[key] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if s.State(dep) == Pending {
				s.setState(dep, Skipped)
			}
			walk(dep)
		}
	}
	walk(failedKey)
}

func reverseEdges(graph *unitgraph.Graph) map[string][]string {
	out := map[string][]string{}
	for key, deps := range graph.Edges {
		for _, d := range deps {
			out[d.Key()] = append(out[d.Key()], key)
		}
	}
	return out
}

// orderedUnits produces a criticality-weighted dispatch order: units are
// grouped into dependency-count tiers (leaves first), then within a tier
// sorted by descending transitive-dependent count (the unit blocking the
// most downstream work goes first) and finally by PackageId string for
// determinism.
func orderedUnits(graph *unitgraph.Graph) []unitgraph.Unit {
	all := graph.AllUnits()
	dependents := reverseEdges(graph)

	criticality := make(map[string]int, len(all))
	var weight func(key string, seen map[string]bool) int
	weight = func(key string, seen map[string]bool) int {
		total := 0
		for _, dep := range dependents[key] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			total += 1 + weight(dep, seen)
		}
		return total
	}
	for _, u := range all {
		criticality[u.Key()] = weight(u.Key(), map[string]bool{})
	}

	depCount := make(map[string]int, len(all))
	byKey := make(map[string]unitgraph.Unit, len(all))
	for _, u := range all {
		key := u.Key()
		byKey[key] = u
		depCount[key] = len(graph.Edges[key])
	}

	var ordered []unitgraph.Unit
	remaining := len(all)
	for remaining > 0 {
		var ready []unitgraph.Unit
		for key, count := range depCount {
			if count == 0 {
				ready = append(ready, byKey[key])
			}
		}
		sort.Slice(ready, func(i, j int) bool {
			ci, cj := criticality[ready[i].Key()], criticality[ready[j].Key()]
			if ci != cj {
				return ci > cj
			}
			return ready[i].Package.String() < ready[j].Package.String()
		})

		for _, u := range ready {
			key := u.Key()
			delete(depCount, key)
			ordered = append(ordered, u)
			remaining--
			for _, dependent := range dependents[key] {
				if _, ok := depCount[dependent]; ok {
					depCount[dependent]--
				}
			}
		}
	}

	return ordered
}
