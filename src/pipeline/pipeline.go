package pipeline

import (
	"context"
	"fmt"
	"time"

	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
)

// -----------------------------------------------------------------------------

// Pipeline runs its filters in order, feeding each one the previous output.
type Pipeline struct {
	filters []interfaces.IFilter
	logger  *logger.Logger
}

func NewPipeline(log *logger.Logger) *Pipeline {
	return &Pipeline{logger: log}
}

// -----------------------------------------------------------------------------

// AddFilter appends a stage and returns the pipeline for chaining.
func (p *Pipeline) AddFilter(f interfaces.IFilter) *Pipeline {
	p.filters = append(p.filters, f)
	return p
}

// -----------------------------------------------------------------------------

// Execute threads input through every stage. It stops at the first stage
// error, which is returned wrapped with the stage name.
func (p *Pipeline) Execute(ctx context.Context, input interface{}) (interface{}, error) {
	start := time.Now()
	data := input

	for _, f := range p.filters {
		stageStart := time.Now()
		out, err := f.Process(ctx, data)
		p.logger.Debug("Stage %s finished in %.2f seconds", f.Name(), time.Since(stageStart).Seconds())
		if err != nil {
			p.logger.Error("Stage %s failed after %.2f seconds: %v", f.Name(), time.Since(start).Seconds(), err)
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
		data = out
	}

	p.logger.Info("Pipeline executed in %.2f seconds", time.Since(start).Seconds())
	return data, nil
}
