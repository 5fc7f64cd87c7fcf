package opt

import "math"

// Scheduler defines the interface for learning rate schedulers.
type Scheduler interface {
	Step()
	StepWithLoss(loss float64)
	GetLR() float64
}

// BaseScheduler provides default implementations for Scheduler.
type BaseScheduler struct{}

func (s BaseScheduler) Step()                     {}
func (s BaseScheduler) StepWithLoss(loss float64) {}

// StepLR decays the learning rate by gamma every stepSize steps.
type StepLR struct {
	BaseScheduler
	optimizers []Optimizer
	stepSize   int
	gamma      float64
	lastStep   int
}

// NewStepLR creates a StepLR driving every optimizer in optimizers.
func NewStepLR(stepSize int, gamma float64, optimizers ...Optimizer) *StepLR {
	return &StepLR{
		optimizers: optimizers,
		stepSize:   stepSize,
		gamma:      gamma,
	}
}

func (s *StepLR) Step() {
	s.lastStep++
	if s.stepSize > 0 && s.lastStep%s.stepSize == 0 {
		for _, o := range s.optimizers {
			o.SetLearningRate(o.LearningRate() * s.gamma)
		}
	}
}

func (s *StepLR) GetLR() float64 {
	if len(s.optimizers) == 0 {
		return 0
	}
	return s.optimizers[0].LearningRate()
}

// ReduceLROnPlateau reduces learning rate when the loss has stopped improving.
type ReduceLROnPlateau struct {
	BaseScheduler
	optimizers []Optimizer
	factor     float64
	patience   int
	threshold  float64
	minLR      float64

	bestLoss     float64
	numBadEpochs int
}

// NewReduceLROnPlateau creates a plateau scheduler driving every optimizer in optimizers.
func NewReduceLROnPlateau(factor float64, patience int, threshold, minLR float64, optimizers ...Optimizer) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		optimizers: optimizers,
		factor:     factor,
		patience:   patience,
		threshold:  threshold,
		minLR:      minLR,
		bestLoss:   math.MaxFloat64,
	}
}

func (s *ReduceLROnPlateau) StepWithLoss(currentLoss float64) {
	if currentLoss < s.bestLoss-s.threshold {
		s.bestLoss = currentLoss
		s.numBadEpochs = 0
		return
	}
	s.numBadEpochs++
	if s.numBadEpochs < s.patience {
		return
	}
	for _, o := range s.optimizers {
		o.SetLearningRate(math.Max(o.LearningRate()*s.factor, s.minLR))
	}
	s.numBadEpochs = 0
}

func (s *ReduceLROnPlateau) GetLR() float64 {
	if len(s.optimizers) == 0 {
		return 0
	}
	return s.optimizers[0].LearningRate()
}
