package style

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoStyle/internal/opt"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// StepResult is the outcome of one training step.
type StepResult struct {
	ContentLoss float64
	StyleLoss   float64
	Pastiche    *tensor.Tensor
}

// Total returns the combined loss.
func (r StepResult) Total() float64 {
	return r.ContentLoss + r.StyleLoss
}

// Callback defines the interface for training callbacks. A non-nil error
// stops training.
type Callback interface {
	OnTrainBegin(e *Engine) error
	OnTrainEnd(e *Engine) error
	OnStepBegin(step int, e *Engine) error
	OnStepEnd(step int, r StepResult, e *Engine) error
}

// Stopper is implemented by callbacks that can end training early.
type Stopper interface {
	ShouldStop() bool
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(e *Engine) error                      { return nil }
func (c BaseCallback) OnTrainEnd(e *Engine) error                        { return nil }
func (c BaseCallback) OnStepBegin(step int, e *Engine) error             { return nil }
func (c BaseCallback) OnStepEnd(step int, r StepResult, e *Engine) error { return nil }

// SchedulerCallback is a callback that wraps a learning rate scheduler.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnStepEnd(step int, r StepResult, e *Engine) error {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(r.Total())
	return nil
}

// EarlyStopping stops training when the total loss has not improved by more
// than Threshold for Patience steps. Patience <= 0 disables it.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64
	Logger    logrus.FieldLogger

	bestLoss    float64
	numBadSteps int
	stopped     bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnStepEnd(step int, r StepResult, e *Engine) error {
	if c.Patience <= 0 {
		return nil
	}
	loss := r.Total()
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadSteps = 0
	} else {
		c.numBadSteps++
	}

	if c.numBadSteps >= c.Patience {
		if c.Logger != nil {
			c.Logger.WithFields(logrus.Fields{
				"step":     step,
				"loss":     loss,
				"patience": c.Patience,
			}).Info("early stopping: loss did not improve")
		}
		c.stopped = true
	}
	return nil
}

// ShouldStop reports whether patience ran out.
func (c *EarlyStopping) ShouldStop() bool {
	return c.stopped
}

// ModelCheckpoint saves both networks whenever the total loss reaches a new best.
type ModelCheckpoint struct {
	BaseCallback
	Logger logrus.FieldLogger

	bestLoss float64
}

func NewModelCheckpoint() *ModelCheckpoint {
	return &ModelCheckpoint{bestLoss: math.MaxFloat64}
}

func (c *ModelCheckpoint) OnStepEnd(step int, r StepResult, e *Engine) error {
	loss := r.Total()
	if loss >= c.bestLoss {
		return nil
	}
	c.bestLoss = loss
	if err := e.Save(); err != nil {
		return err
	}
	if c.Logger != nil {
		c.Logger.WithFields(logrus.Fields{"step": step, "loss": loss}).Debug("checkpoint saved: loss is new best")
	}
	return nil
}

// Logger logs training progress every Interval steps.
type Logger struct {
	BaseCallback
	Interval int
	Logger   logrus.FieldLogger
}

func (c Logger) OnStepEnd(step int, r StepResult, e *Engine) error {
	if c.Logger != nil && c.Interval > 0 && step%c.Interval == 0 {
		c.Logger.WithFields(logrus.Fields{
			"step":         step,
			"content_loss": r.ContentLoss,
			"style_loss":   r.StyleLoss,
		}).Info("training")
	}
	return nil
}
