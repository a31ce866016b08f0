// Package pipeline runs a set of validators against one asset in two
// phases: a sequential critical phase that gates the heavy decoders,
// then a parallel standard phase bounded by the host CPU count.
package pipeline

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/assetflow/internal/logger"
	"github.com/marmos91/assetflow/pkg/asset"
)

// Pipeline executes validators for one file type. Instances are
// immutable and shared across jobs.
type Pipeline struct {
	name       string
	validators []asset.Validator
	workers    int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers overrides the standard-phase parallelism. Used by tests;
// production keeps the CPU-count default.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// New builds a pipeline. Validators keep their declaration order within
// the critical phase; standard-phase completion order is unspecified.
func New(name string, validators []asset.Validator, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:       name,
		validators: validators,
		workers:    runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Run executes the critical phase sequentially and, only if every
// critical validator passed, the standard phase in parallel. The first
// critical failure aborts the run and returns the partial result list.
// Result ordering within the standard phase is not stable.
func (p *Pipeline) Run(ac *asset.Context, policy *asset.Policy) []asset.Result {
	start := time.Now()
	results := make([]asset.Result, 0, len(p.validators))

	var standard []asset.Validator
	for _, v := range p.validators {
		if !v.Critical() {
			standard = append(standard, v)
			continue
		}
		r := p.runOne(v, ac, policy)
		results = append(results, r)
		if !r.IsValid {
			logger.Warn("critical validator failed, aborting pipeline",
				logger.KeyTraceID, ac.TraceID,
				logger.KeyValidator, r.ValidatorName,
				logger.KeyErrCode, string(r.ErrorCode),
				logger.KeyError, r.ErrorMessage,
			)
			return results
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for _, v := range standard {
		g.Go(func() error {
			r := p.runOne(v, ac, policy)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.Debug("pipeline run complete",
		logger.KeyTraceID, ac.TraceID,
		"pipeline", p.name,
		"validators", len(results),
		logger.KeyDurationMs, float64(time.Since(start).Microseconds())/1000.0,
	)
	return results
}

// runOne times a single validator and converts panics into failed
// results so nothing escapes the pipeline boundary.
func (p *Pipeline) runOne(v asset.Validator, ac *asset.Context, policy *asset.Policy) (res asset.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("validator panic",
				logger.KeyTraceID, ac.TraceID,
				logger.KeyValidator, v.Name(),
				logger.KeyError, fmt.Sprint(r),
			)
			res = asset.Result{
				ValidatorName: v.Name(),
				IsValid:       false,
				ErrorCode:     asset.CodeUnknown,
				ErrorMessage:  fmt.Sprintf("validator crashed: %v", r),
			}
		}
		res.Duration = time.Since(start)
	}()

	res = v.Validate(ac, policy)
	if res.ValidatorName == "" {
		res.ValidatorName = v.Name()
	}
	return res
}

// FirstInvalid returns the first failing result, if any.
func FirstInvalid(results []asset.Result) (asset.Result, bool) {
	for _, r := range results {
		if !r.IsValid {
			return r, true
		}
	}
	return asset.Result{}, false
}

// AllValid reports whether every result passed.
func AllValid(results []asset.Result) bool {
	_, failed := FirstInvalid(results)
	return !failed
}

// MergeMetadata flattens the metadata of all passing results into one
// map. Later validators win on key collisions.
func MergeMetadata(results []asset.Result) map[string]any {
	merged := make(map[string]any)
	for _, r := range results {
		if !r.IsValid {
			continue
		}
		for k, v := range r.Metadata {
			merged[k] = v
		}
	}
	return merged
}

// Summary renders a human-readable report of one run. Debug aid only.
func Summary(name string, results []asset.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "pipeline %s: %d validators\n", name, len(results))
	for _, r := range results {
		if r.IsValid {
			fmt.Fprintf(&b, "  PASS %-28s %8.2fms\n", r.ValidatorName, float64(r.Duration.Microseconds())/1000.0)
			continue
		}
		fmt.Fprintf(&b, "  FAIL %-28s %8.2fms %s: %s\n",
			r.ValidatorName, float64(r.Duration.Microseconds())/1000.0, r.ErrorCode, r.ErrorMessage)
	}
	return b.String()
}
