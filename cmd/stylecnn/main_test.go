package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietApp(t *testing.T) func(args ...string) error {
	t.Helper()
	logger, _ := test.NewNullLogger()
	app := newApp(logger)
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	return func(args ...string) error {
		return app.Run(append([]string{"stylecnn"}, args...))
	}
}

func TestCommandsRequireImages(t *testing.T) {
	run := quietApp(t)
	assert.Error(t, run("train"))
	assert.Error(t, run("stylize", "--content", "a.png"))
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("style_weight: -3\n"), 0o644))

	run := quietApp(t)
	err := run("--config", path, "stylize", "--content", "a.png", "--style", "b.png", "--out", "c.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "style_weight")
}

func TestMissingImagesAreReported(t *testing.T) {
	dir := t.TempDir()
	run := quietApp(t)
	err := run("stylize",
		"--content", filepath.Join(dir, "missing.png"),
		"--style", filepath.Join(dir, "style.png"),
		"--out", filepath.Join(dir, "out.png"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.png"))
}
