// ABOUTME: Renders DOT source to SVG or PNG by piping it through the graphviz dot command.
// ABOUTME: The "dot" format passes the source through unchanged.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Func renders DOT text to format.
type Func func(ctx context.Context, dotText, format string) ([]byte, error)

// ErrGraphvizMissing is returned when svg or png output is requested without graphviz installed.
var ErrGraphvizMissing = errors.New("graphviz dot command not found")

var lookPath = exec.LookPath

// GraphvizAvailable reports whether the dot command is on PATH.
func GraphvizAvailable() bool {
	_, err := lookPath("dot")
	return err == nil
}

// Render converts dotText to format: dot, svg, or png.
func Render(ctx context.Context, dotText, format string) ([]byte, error) {
	if strings.TrimSpace(dotText) == "" {
		return nil, errors.New("render: empty DOT text")
	}
	switch format {
	case "dot":
		return []byte(dotText), nil
	case "svg", "png":
	default:
		return nil, fmt.Errorf("render: unsupported format %q (want dot, svg, or png)", format)
	}
	if !GraphvizAvailable() {
		return nil, fmt.Errorf("render %s: %w", format, ErrGraphvizMissing)
	}

	cmd := exec.CommandContext(ctx, "dot", "-T"+format)
	cmd.Stdin = strings.NewReader(dotText)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("graphviz dot failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
