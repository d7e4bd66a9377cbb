package pipeline

import (
	"context"

	"github.com/LdDl/crashtruth-go/store"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Dispatcher routes a produced artifact to the stage consuming it
type Dispatcher struct {
	runner *Runner
	store  store.Store
	logger logrus.FieldLogger
	// Consuming stage per input kind
	stages map[store.Kind]Stage
	// Stages without input artifact, by output kind
	sources map[store.Kind]Stage
}

// NewDispatcher registers stages. Each artifact kind may be consumed by one stage only.
func NewDispatcher(runner *Runner, s store.Store, logger logrus.FieldLogger, stages ...Stage) (*Dispatcher, error) {
	d := &Dispatcher{
		runner:  runner,
		store:   s,
		logger:  logger,
		stages:  make(map[store.Kind]Stage),
		sources: make(map[store.Kind]Stage),
	}
	for _, stage := range stages {
		if stage.Input() == "" {
			if _, ok := d.sources[stage.Output()]; ok {
				return nil, errors.Errorf("duplicate source stage for %s", stage.Output())
			}
			d.sources[stage.Output()] = stage
			continue
		}
		if stage.Input() == stage.Output() {
			return nil, errors.Errorf("stage %s consumes its own output", stage.Name())
		}
		if other, ok := d.stages[stage.Input()]; ok {
			return nil, errors.Errorf("stages %s and %s both consume %s", other.Name(), stage.Name(), stage.Input())
		}
		d.stages[stage.Input()] = stage
	}
	return d, nil
}

// Trigger runs the stage consuming kind and keeps chaining through produced artifacts.
// Chain stops on a skip, a failure or when nothing consumes the produced kind.
func (d *Dispatcher) Trigger(ctx context.Context, videoRef string, kind store.Kind) []Result {
	results := make([]Result, 0, len(d.stages))
	seen := make(map[store.Kind]bool)
	for {
		stage, ok := d.stages[kind]
		if !ok || seen[kind] {
			return results
		}
		seen[kind] = true
		res := d.runner.Run(ctx, stage, videoRef)
		results = append(results, res)
		if res.Outcome != OutcomeProcessed && res.Outcome != OutcomeAlreadyDone {
			return results
		}
		kind = stage.Output()
	}
}

// Produce runs the source stage producing kind (e.g. detections from frames) and chains downstream.
func (d *Dispatcher) Produce(ctx context.Context, videoRef string, kind store.Kind) ([]Result, error) {
	stage, ok := d.sources[kind]
	if !ok {
		return nil, errors.Errorf("no source stage produces %s", kind)
	}
	res := d.runner.Run(ctx, stage, videoRef)
	results := []Result{res}
	if res.Outcome == OutcomeProcessed || res.Outcome == OutcomeAlreadyDone {
		results = append(results, d.Trigger(ctx, videoRef, kind)...)
	}
	return results, nil
}

// Submit stores an externally produced artifact and triggers its consumers.
// A redelivered artifact that is already stored is not rewritten.
func (d *Dispatcher) Submit(ctx context.Context, videoRef string, kind store.Kind, body []byte) ([]Result, error) {
	if err := store.ValidateRef(videoRef); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	err := d.store.Put(ctx, videoRef, kind, body)
	if errors.Is(err, store.ErrExists) {
		d.logger.WithFields(logrus.Fields{
			"video": videoRef,
			"kind":  kind,
		}).Info("artifact already submitted")
	} else if err != nil {
		return nil, errors.Wrapf(err, "Can't store %s", kind)
	}
	return d.Trigger(ctx, videoRef, kind), nil
}
