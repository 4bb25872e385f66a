// Package export shells out to a row-oriented spreadsheet converter.
// The tool reads CSV bytes on standard input, writes binary spreadsheet
// bytes on standard output, and signals failure solely through a nonzero
// exit code.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"
)

// Columns of the expense CSV, in the contractual order the converter's
// column mapping refers to.
const columnMapping = "1,2,3,4,5,6,7,8"

// Converter turns CSV rows into a binary spreadsheet
type Converter interface {
	Convert(ctx context.Context, templatePath string, csv io.Reader, out io.Writer) error
}

// ExecConverter invokes an external csv2odf-style command
type ExecConverter struct {
	Command string
	Logger  *zap.Logger
}

// NewExecConverter creates a converter around the named command
func NewExecConverter(command string, logger *zap.Logger) *ExecConverter {
	return &ExecConverter{Command: command, Logger: logger}
}

// Convert runs the conversion command against a template. The child process
// inherits the request context, so a client disconnect kills it.
func (c *ExecConverter) Convert(ctx context.Context, templatePath string, csv io.Reader, out io.Writer) error {
	cmd := exec.CommandContext(ctx, c.Command,
		"--tab", "1",
		"--skip", "1", // header row is not data
		"--columns", columnMapping,
		"--template", templatePath,
	)
	cmd.Stdin = csv
	cmd.Stdout = out

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.Logger.Error("spreadsheet conversion failed",
			zap.String("command", c.Command),
			zap.String("template", templatePath),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return fmt.Errorf("could not create spreadsheet: %w", err)
	}

	return nil
}
