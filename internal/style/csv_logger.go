package style

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// CSVLogger logs training progress to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(e *Engine) error {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0o644)
	if err != nil {
		return errors.Wrapf(err, "CSVLogger: open %s", c.Filename)
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.writer.Write([]string{"step", "content_loss", "style_loss", "total_loss", "time_seconds"})
		c.writer.Flush()
	}
	return errors.Wrap(c.writer.Error(), "CSVLogger: write header")
}

func (c *CSVLogger) OnStepEnd(step int, r StepResult, e *Engine) error {
	if c.writer == nil {
		return nil
	}

	record := []string{
		strconv.Itoa(step),
		fmt.Sprintf("%.6f", r.ContentLoss),
		fmt.Sprintf("%.6f", r.StyleLoss),
		fmt.Sprintf("%.6f", r.Total()),
		fmt.Sprintf("%.2f", time.Since(c.start).Seconds()),
	}
	if err := c.writer.Write(record); err != nil {
		return errors.Wrap(err, "CSVLogger: write record")
	}
	c.writer.Flush()
	return errors.Wrap(c.writer.Error(), "CSVLogger: flush")
}

func (c *CSVLogger) OnTrainEnd(e *Engine) error {
	if c.file == nil {
		return nil
	}
	c.writer.Flush()
	err := c.file.Close()
	c.file = nil
	c.writer = nil
	return errors.Wrap(err, "CSVLogger: close")
}
