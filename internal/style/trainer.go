package style

import (
	"context"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// BatchSource returns the content and style batch for a step.
type BatchSource func(step int) (content, style *tensor.Tensor, err error)

// Trainer drives an Engine for a fixed number of steps and notifies callbacks.
type Trainer struct {
	Engine    *Engine
	Callbacks []Callback
}

// NewTrainer creates a Trainer for e.
func NewTrainer(e *Engine, callbacks ...Callback) *Trainer {
	return &Trainer{Engine: e, Callbacks: callbacks}
}

// Run trains for up to steps steps, numbered from 1. It returns early, without
// error, when a Stopper callback asks to stop, and with ctx.Err() when ctx is
// cancelled. OnTrainEnd runs whenever OnTrainBegin succeeded for every callback.
func (t *Trainer) Run(ctx context.Context, steps int, next BatchSource) (err error) {
	for _, cb := range t.Callbacks {
		if err := cb.OnTrainBegin(t.Engine); err != nil {
			return err
		}
	}
	defer func() {
		for _, cb := range t.Callbacks {
			if endErr := cb.OnTrainEnd(t.Engine); endErr != nil && err == nil {
				err = endErr
			}
		}
	}()

	for step := 1; step <= steps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, cb := range t.Callbacks {
			if err := cb.OnStepBegin(step, t.Engine); err != nil {
				return err
			}
		}

		content, style, err := next(step)
		if err != nil {
			return errors.Wrapf(err, "step %d: load batch", step)
		}
		contentLoss, styleLoss, pastiche, err := t.Engine.Train(content, style)
		if err != nil {
			return errors.Wrapf(err, "step %d", step)
		}

		r := StepResult{ContentLoss: contentLoss, StyleLoss: styleLoss, Pastiche: pastiche}
		for _, cb := range t.Callbacks {
			if err := cb.OnStepEnd(step, r, t.Engine); err != nil {
				return err
			}
		}
		if t.shouldStop() {
			return nil
		}
	}
	return nil
}

func (t *Trainer) shouldStop() bool {
	for _, cb := range t.Callbacks {
		if s, ok := cb.(Stopper); ok && s.ShouldStop() {
			return true
		}
	}
	return false
}
