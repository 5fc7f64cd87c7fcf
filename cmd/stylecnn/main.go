// Command stylecnn trains arbitrary-style transfer networks and applies them
// to images.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/FlavioCFOliveira/GoStyle/gostyle"
	"github.com/FlavioCFOliveira/GoStyle/internal/config"
	"github.com/FlavioCFOliveira/GoStyle/internal/imageio"
	"github.com/FlavioCFOliveira/GoStyle/internal/metrics"
	"github.com/FlavioCFOliveira/GoStyle/internal/opt"
	"github.com/FlavioCFOliveira/GoStyle/internal/style"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

func main() {
	logger := logrus.New()
	if err := newApp(logger).Run(os.Args); err != nil {
		logger.WithError(err).Fatal("stylecnn failed")
	}
}

func newApp(logger *logrus.Logger) *cli.App {
	var cfg config.Config

	return &cli.App{
		Name:  "stylecnn",
		Usage: "train and apply arbitrary-style transfer networks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"GOSTYLE_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg = config.Default()
			if path := c.String("config"); path != "" {
				loaded, err := config.Load(path)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			logger.SetLevel(cfg.Level())
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "train",
				Usage: "train the normalization and transform networks",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "content", Usage: "content image (repeatable)", Required: true},
					&cli.StringSliceFlag{Name: "style", Usage: "style image (repeatable)", Required: true},
					&cli.IntFlag{Name: "steps", Value: 1000, Usage: "number of training steps"},
					&cli.IntFlag{Name: "content-size", Value: 256, Usage: "resize content images to this size, 0 keeps them"},
					&cli.IntFlag{Name: "log-every", Value: 10, Usage: "log losses every N steps"},
					&cli.IntFlag{Name: "patience", Usage: "stop after N steps without improvement, 0 disables"},
					&cli.StringFlag{Name: "csv", Usage: "write per-step losses to this CSV file"},
				},
				Action: func(c *cli.Context) error {
					return train(c, cfg, logger)
				},
			},
			{
				Name:  "stylize",
				Usage: "apply a style image to a content image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "content", Usage: "content image", Required: true},
					&cli.StringFlag{Name: "style", Usage: "style image", Required: true},
					&cli.StringFlag{Name: "out", Usage: "output image (.png or .jpg)", Required: true},
					&cli.IntFlag{Name: "content-size", Usage: "resize the content image to this size, 0 keeps it"},
				},
				Action: func(c *cli.Context) error {
					return stylize(c, cfg, logger)
				},
			},
		},
	}
}

func loadImages(paths []string, size int) ([]*tensor.Tensor, error) {
	images := make([]*tensor.Tensor, 0, len(paths))
	for _, p := range paths {
		img, err := imageio.Load(p, size)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.WithError(err).WithField("addr", addr).Error("metrics server stopped")
		}
	}()
}

func train(c *cli.Context, cfg config.Config, logger *logrus.Logger) error {
	contents, err := loadImages(c.StringSlice("content"), c.Int("content-size"))
	if err != nil {
		return err
	}
	styles, err := loadImages(c.StringSlice("style"), cfg.StyleSize)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		serveMetrics(cfg.MetricsAddr, reg, logger)
	}

	engine, err := gostyle.FromConfig(cfg, logger, m)
	if err != nil {
		return err
	}

	checkpoint := style.NewModelCheckpoint()
	checkpoint.Logger = logger
	callbacks := []style.Callback{
		style.Logger{Interval: c.Int("log-every"), Logger: logger},
		checkpoint,
	}
	if cfg.LRDecay.StepSize > 0 {
		sched := opt.NewStepLR(cfg.LRDecay.StepSize, cfg.LRDecay.Gamma, engine.Optimizers()...)
		callbacks = append(callbacks, style.NewSchedulerCallback(sched))
	}
	if p := c.Int("patience"); p > 0 {
		stop := style.NewEarlyStopping(p, 0)
		stop.Logger = logger
		callbacks = append(callbacks, stop)
	}
	if path := c.String("csv"); path != "" {
		callbacks = append(callbacks, style.NewCSVLogger(path, false))
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	batches := func(step int) (*tensor.Tensor, *tensor.Tensor, error) {
		i := step - 1
		return contents[i%len(contents)], styles[(i/len(contents))%len(styles)], nil
	}
	err = style.NewTrainer(engine, callbacks...).Run(ctx, c.Int("steps"), batches)
	if errors.Is(err, context.Canceled) {
		logger.WithField("steps", engine.Steps()).Info("training interrupted, saving checkpoints")
		return engine.Save()
	}
	return err
}

func stylize(c *cli.Context, cfg config.Config, logger *logrus.Logger) error {
	content, err := imageio.Load(c.String("content"), c.Int("content-size"))
	if err != nil {
		return err
	}
	styleImg, err := imageio.Load(c.String("style"), cfg.StyleSize)
	if err != nil {
		return err
	}

	engine, err := gostyle.FromConfig(cfg, logger, nil)
	if err != nil {
		return err
	}
	pastiche, err := engine.Eval(content, styleImg)
	if err != nil {
		return err
	}
	if err := imageio.Save(c.String("out"), pastiche); err != nil {
		return err
	}
	logger.WithField("out", c.String("out")).Info("wrote pastiche")
	return nil
}
