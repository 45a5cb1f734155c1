// Package estimator runs the optimistic and pessimistic simulations
// over one graph and blends them into a bounded range plus a single
// rough estimate per milestone.
package estimator

import (
	"fmt"
	"sync"

	"github.com/user/loadsim/pkg/graph"
	"github.com/user/loadsim/pkg/ports"
	"github.com/user/loadsim/pkg/simulator"
)

// Coefficients maps milestone name to the pessimistic weight used when
// blending the two runs: rough = optimistic*(1-w) + pessimistic*w.
// The weights are empirically tuned against ground-truth datasets, not
// derived; treat them as configuration.
type Coefficients map[simulator.Milestone]float64

// DefaultCoefficients weights both bounds equally for every milestone.
func DefaultCoefficients() Coefficients {
	c := make(Coefficients, len(simulator.AllMilestones))
	for _, m := range simulator.AllMilestones {
		c[m] = 0.5
	}
	return c
}

// Options configures one estimate: the environment parameters shared
// by both runs, the blending coefficients, and an optional logger.
type Options struct {
	// Environment holds the shared environment parameters. Its Policy
	// and Logger fields are ignored; the estimator sets them per run.
	Environment simulator.Options

	// Coefficients blends the two runs. Nil means equal weighting.
	Coefficients Coefficients

	// Logger receives run progress. Nil means no logging.
	Logger ports.Logger
}

// Estimate is the combined output of the two runs.
type Estimate struct {
	// Optimistic and Pessimistic are the full results of each run,
	// including per-node timings for audits to consume.
	Optimistic  *simulator.Result
	Pessimistic *simulator.Result

	// Rough is the blended single-point estimate per milestone.
	Rough simulator.Milestones
}

// Run executes both policy runs concurrently and blends their
// milestones. Each run constructs its own connection pool, DNS cache,
// and timing records, so the shared graph is read-only throughout.
func Run(g *graph.Graph, opts Options) (*Estimate, error) {
	coefficients := opts.Coefficients
	if coefficients == nil {
		coefficients = DefaultCoefficients()
	}
	logger := opts.Logger
	if logger != nil {
		logger = logger.WithComponent("estimator")
		logger.Debug("Estimating milestones over %d nodes", g.Len())
	}

	policies := []simulator.Policy{simulator.PolicyOptimistic, simulator.PolicyPessimistic}
	results := make([]*simulator.Result, len(policies))
	errs := make([]error, len(policies))

	var wg sync.WaitGroup
	for i, policy := range policies {
		wg.Add(1)
		go func(i int, policy simulator.Policy) {
			defer wg.Done()
			runOpts := opts.Environment
			runOpts.Policy = policy
			runOpts.Logger = opts.Logger
			sim, err := simulator.New(g, runOpts)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = sim.Run()
		}(i, policy)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s run: %w", policies[i], err)
		}
	}

	estimate := &Estimate{
		Optimistic:  results[0],
		Pessimistic: results[1],
		Rough:       make(simulator.Milestones, len(simulator.AllMilestones)),
	}
	for _, m := range simulator.AllMilestones {
		weight, ok := coefficients[m]
		if !ok {
			weight = 0.5
		}
		opt := estimate.Optimistic.Milestones[m]
		pess := estimate.Pessimistic.Milestones[m]
		estimate.Rough[m] = opt*(1-weight) + pess*weight
	}

	if logger != nil {
		logger.Debug("Rough fully-settled estimate: %.1f ms", estimate.Rough[simulator.MilestoneFullySettled])
	}
	return estimate, nil
}
