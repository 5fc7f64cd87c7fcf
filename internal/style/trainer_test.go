package style

import (
	"context"
	"encoding/csv"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoStyle/internal/opt"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

type recorder struct {
	BaseCallback
	begun, ended bool
	steps        []int
}

func (r *recorder) OnTrainBegin(e *Engine) error { r.begun = true; return nil }
func (r *recorder) OnTrainEnd(e *Engine) error   { r.ended = true; return nil }
func (r *recorder) OnStepEnd(step int, res StepResult, e *Engine) error {
	r.steps = append(r.steps, step)
	return nil
}

func fixedBatches(seed int64) BatchSource {
	rng := rand.New(rand.NewSource(seed))
	content, style := randomImage(rng, 1), randomImage(rng, 1)
	return func(step int) (*tensor.Tensor, *tensor.Tensor, error) {
		return content, style, nil
	}
}

func TestTrainerRunsEveryStep(t *testing.T) {
	e := newTestEngine(t, testConfig(""))
	rec := &recorder{}

	require.NoError(t, NewTrainer(e, rec).Run(context.Background(), 3, fixedBatches(1)))
	assert.True(t, rec.begun)
	assert.True(t, rec.ended)
	assert.Equal(t, []int{1, 2, 3}, rec.steps)
	assert.Equal(t, 3, e.Steps())
}

func TestTrainerStopsOnCancel(t *testing.T) {
	e := newTestEngine(t, testConfig(""))
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewTrainer(e, rec).Run(ctx, 3, fixedBatches(1))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, rec.steps)
	assert.True(t, rec.ended)
}

func TestTrainerPropagatesBatchErrors(t *testing.T) {
	e := newTestEngine(t, testConfig(""))
	boom := errors.New("boom")
	err := NewTrainer(e).Run(context.Background(), 3, func(step int) (*tensor.Tensor, *tensor.Tensor, error) {
		return nil, nil, boom
	})
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 0, e.Steps())
}

func TestEarlyStopping(t *testing.T) {
	e := newTestEngine(t, testConfig(""))
	stop := NewEarlyStopping(2, 1e12)
	rec := &recorder{}

	require.NoError(t, NewTrainer(e, stop, rec).Run(context.Background(), 10, fixedBatches(2)))
	// The first step always improves on +Inf; two more without a 1e12 gain exhaust patience.
	assert.Equal(t, []int{1, 2, 3}, rec.steps)
	assert.True(t, stop.ShouldStop())
}

func TestEarlyStoppingWithoutPatienceNeverStops(t *testing.T) {
	e := newTestEngine(t, testConfig(""))
	stop := NewEarlyStopping(0, 1e12)
	rec := &recorder{}

	require.NoError(t, NewTrainer(e, stop, rec).Run(context.Background(), 4, fixedBatches(2)))
	assert.Equal(t, []int{1, 2, 3, 4}, rec.steps)
	assert.False(t, stop.ShouldStop())
}

func TestModelCheckpointSavesOnImprovement(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, testConfig(dir))

	require.NoError(t, NewTrainer(e, NewModelCheckpoint()).Run(context.Background(), 1, fixedBatches(3)))
	assert.FileExists(t, filepath.Join(dir, NormalizationCheckpoint))
	assert.FileExists(t, filepath.Join(dir, TransformCheckpoint))
}

func TestModelCheckpointReportsSaveErrors(t *testing.T) {
	e := newTestEngine(t, testConfig(""))
	err := NewTrainer(e, NewModelCheckpoint()).Run(context.Background(), 1, fixedBatches(3))
	assert.Error(t, err)
}

func TestSchedulerCallback(t *testing.T) {
	e := newTestEngine(t, testConfig(""))
	sched := opt.NewStepLR(1, 0.5, e.Optimizers()...)

	require.NoError(t, NewTrainer(e, NewSchedulerCallback(sched)).Run(context.Background(), 2, fixedBatches(4)))
	for _, o := range e.Optimizers() {
		assert.InDelta(t, 0.25e-3, o.LearningRate(), 1e-12)
	}
}

func TestLoggerCallback(t *testing.T) {
	e := newTestEngine(t, testConfig(""))
	logger, hook := test.NewNullLogger()

	require.NoError(t, NewTrainer(e, Logger{Interval: 2, Logger: logger}).Run(context.Background(), 4, fixedBatches(5)))
	var steps []interface{}
	for _, entry := range hook.AllEntries() {
		if entry.Message == "training" {
			steps = append(steps, entry.Data["step"])
		}
	}
	assert.Equal(t, []interface{}{2, 4}, steps)
}

func TestCSVLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	e := newTestEngine(t, testConfig(""))

	require.NoError(t, NewTrainer(e, NewCSVLogger(path, false)).Run(context.Background(), 2, fixedBatches(6)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"step", "content_loss", "style_loss", "total_loss", "time_seconds"}, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "2", records[2][0])

	err = NewTrainer(e, NewCSVLogger(filepath.Join(path, "nested"), false)).Run(context.Background(), 1, fixedBatches(6))
	assert.Error(t, err)
}
