package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/LdDl/crashtruth-go/store"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Outcome classifies a finished run
type Outcome string

const (
	// OutcomeProcessed means output artifact has been written
	OutcomeProcessed Outcome = "processed"
	// OutcomeSkipped is a deliberate skip (e.g. too few frames). Not a failure
	OutcomeSkipped Outcome = "skipped"
	// OutcomeAlreadyDone means output existed before the run: nothing recomputed
	OutcomeAlreadyDone Outcome = "already_done"
	// OutcomeFailed means the run aborted. Nothing has been written
	OutcomeFailed Outcome = "failed"
)

// Succeeded reports whether outcome is a success of any sort
func (o Outcome) Succeeded() bool {
	return o != OutcomeFailed
}

// Result of a single stage run
type Result struct {
	RunID    string        `json:"run_id"`
	VideoRef string        `json:"video"`
	Stage    string        `json:"stage"`
	Outcome  Outcome       `json:"outcome"`
	Output   store.Kind    `json:"output"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	// Err is set for failed and skipped runs
	Err error `json:"-"`
}

// Runner executes stages against a store. Every run owns its state; Runner is safe for concurrent use.
type Runner struct {
	store   store.Store
	logger  logrus.FieldLogger
	metrics *Metrics
}

// NewRunner creates runner. Metrics may be nil
func NewRunner(s store.Store, logger logrus.FieldLogger, metrics *Metrics) *Runner {
	return &Runner{
		store:   s,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes stage for the video once: if output artifact exists the run is a no-op.
func (r *Runner) Run(ctx context.Context, stage Stage, videoRef string) Result {
	started := time.Now()
	res := Result{
		RunID:    uuid.New().String(),
		VideoRef: videoRef,
		Stage:    stage.Name(),
		Output:   stage.Output(),
	}
	log := r.logger.WithFields(logrus.Fields{
		"video":  videoRef,
		"stage":  res.Stage,
		"run_id": res.RunID,
	})

	res.Outcome, res.Err = r.execute(ctx, stage, videoRef)
	res.Duration = time.Since(started)
	if res.Err != nil {
		res.Detail = res.Err.Error()
	}

	switch res.Outcome {
	case OutcomeProcessed:
		log.WithField("duration", res.Duration).Info("processed")
	case OutcomeAlreadyDone:
		log.Info("artifact exists, skipping")
	case OutcomeSkipped:
		log.WithError(res.Err).Warn("insufficient frames, skipping")
	default:
		log.WithError(res.Err).Error("run failed")
	}

	r.metrics.Observe(res.Stage, res.Outcome, res.Duration)
	if journal, ok := r.store.(store.RunJournal); ok {
		err := journal.RecordRun(ctx, store.RunRecord{
			RunID:    res.RunID,
			VideoRef: videoRef,
			Stage:    res.Stage,
			Outcome:  string(res.Outcome),
			Detail:   res.Detail,
			Duration: res.Duration,
		})
		if err != nil {
			log.WithError(err).Warn("Can't record run")
		}
	}
	return res
}

func (r *Runner) execute(ctx context.Context, stage Stage, videoRef string) (Outcome, error) {
	if err := store.ValidateRef(videoRef); err != nil {
		return OutcomeFailed, &ValidationError{Reason: err.Error()}
	}
	done, err := r.store.Exists(ctx, videoRef, stage.Output())
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "Can't check output artifact")
	}
	if done {
		return OutcomeAlreadyDone, nil
	}

	var input []byte
	if stage.Input() != "" {
		input, err = r.store.Get(ctx, videoRef, stage.Input())
		if err != nil {
			return OutcomeFailed, errors.Wrap(err, "Can't read input artifact")
		}
	}

	output, err := process(ctx, stage, videoRef, input)
	if errors.Is(err, ErrInsufficientFrames) {
		return OutcomeSkipped, err
	}
	if err != nil {
		return OutcomeFailed, err
	}

	err = r.store.Put(ctx, videoRef, stage.Output(), output)
	if errors.Is(err, store.ErrExists) {
		// Concurrent delivery of the same trigger won the race
		return OutcomeAlreadyDone, nil
	}
	if err != nil {
		return OutcomeFailed, errors.Wrap(err, "Can't write output artifact")
	}
	return OutcomeProcessed, nil
}

// process calls stage and converts a panic into an error
func process(ctx context.Context, stage Stage, videoRef string, input []byte) (output []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			output = nil
			err = errors.Errorf("stage %s panicked: %s", stage.Name(), fmt.Sprint(p))
		}
	}()
	return stage.Process(ctx, videoRef, input)
}
