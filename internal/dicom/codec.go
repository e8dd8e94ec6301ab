package dicom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Uncompressed transfer syntaxes. Anything else carries encapsulated
// (compressed) pixel data and must go through the decompression tool before
// frame expansion.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
)

// UncompressedSyntaxes is the set of transfer syntaxes that need no decompression.
var UncompressedSyntaxes = map[string]bool{
	ImplicitVRLittleEndian: true,
	ExplicitVRLittleEndian: true,
	ExplicitVRBigEndian:    true,
}

// Default vendor tool names, looked up on PATH unless configured.
const (
	DefaultDecompressTool = "gdcmconv"
	DefaultExpandTool     = "gexpand"
)

// ToolError reports an external tool that could not run or exited non-zero.
type ToolError struct {
	Tool     string
	ExitCode int // -1 when the process never started
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s could not run: %v", e.Tool, e.Err)
	}
	msg := fmt.Sprintf("%s failed with exit code %d", e.Tool, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// ToolRunner runs an external executable with an explicit argument vector.
type ToolRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// DefaultWaitDelay bounds how long Run waits for a tool's stderr to close
// after the tool exits or is killed.
const DefaultWaitDelay = 10 * time.Second

// ExecRunner runs tools as subprocesses. Stderr is captured for error messages.
type ExecRunner struct {
	// WaitDelay overrides DefaultWaitDelay when positive.
	WaitDelay time.Duration
}

// Run executes name with args and returns a *ToolError on any failure.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = DefaultWaitDelay
	if r.WaitDelay > 0 {
		cmd.WaitDelay = r.WaitDelay
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	// a child left behind by a wrapper script still holds stderr open
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		return nil
	}

	toolErr := &ToolError{
		Tool:     filepath.Base(name),
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	return toolErr
}

// Codec drives the vendor decompression and multi-frame expansion tools.
type Codec struct {
	Runner         ToolRunner
	DecompressTool string
	ExpandTool     string
}

// NewCodec returns a Codec using subprocesses and the given tool paths;
// empty paths fall back to the default tool names.
func NewCodec(decompressTool, expandTool string) *Codec {
	if decompressTool == "" {
		decompressTool = DefaultDecompressTool
	}
	if expandTool == "" {
		expandTool = DefaultExpandTool
	}
	return &Codec{
		Runner:         ExecRunner{},
		DecompressTool: decompressTool,
		ExpandTool:     expandTool,
	}
}

// Decompress writes an uncompressed copy of inputPath to outputPath.
func (c *Codec) Decompress(ctx context.Context, inputPath, outputPath string) error {
	return c.Runner.Run(ctx, c.DecompressTool, "-w", inputPath, outputPath)
}

// Expand splits a multi-frame object into one file per frame inside outDir,
// each named with prefix. raw selects the tool's unprocessed-data mode. The
// produced files are returned sorted.
func (c *Codec) Expand(ctx context.Context, inputPath, outDir, prefix string, raw bool) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create frame directory: %w", err)
	}

	var args []string
	if raw {
		args = append(args, "-a")
	}
	args = append(args, "-pre", prefix, inputPath, outDir)

	if err := c.Runner.Run(ctx, c.ExpandTool, args...); err != nil {
		return nil, err
	}

	frames, err := filepath.Glob(filepath.Join(outDir, prefix+"*.dcm"))
	if err != nil {
		return nil, fmt.Errorf("could not list frames: %w", err)
	}
	sort.Strings(frames)
	return frames, nil
}

// MissingTools returns the configured tools that cannot be found.
func (c *Codec) MissingTools() []string {
	var missing []string
	for _, tool := range []string{c.DecompressTool, c.ExpandTool} {
		if !CheckToolInstalled(tool) {
			missing = append(missing, tool)
		}
	}
	return missing
}

// CheckToolInstalled checks if a tool is available, either as a path or on
// PATH, including the platform's executable suffix.
func CheckToolInstalled(tool string) bool {
	if strings.ContainsRune(tool, os.PathSeparator) {
		_, err := os.Stat(tool)
		return err == nil
	}
	if _, err := exec.LookPath(tool); err == nil {
		return true
	}
	if runtime.GOOS == "windows" && !strings.HasSuffix(tool, ".exe") {
		_, err := exec.LookPath(tool + ".exe")
		return err == nil
	}
	return false
}
