package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promptcad/backend/internal/models"
)

// ErrKernelUnavailable is returned when the external kernel executable cannot be found.
var ErrKernelUnavailable = errors.New("kernel executable not available")

// CommandKernel delegates export and import to an external executable. Each
// call runs the executable once, writes a JSON request to its stdin and reads
// a JSON reply from its stdout.
type CommandKernel struct {
	path    string
	args    []string
	timeout time.Duration
	logger  *zap.Logger
}

type commandRequest struct {
	Op        string     `json:"op"`
	Solid     *Solid     `json:"solid,omitempty"`
	Path      string     `json:"path"`
	Tolerance *Tolerance `json:"tolerance,omitempty"`
}

type commandResponse struct {
	Solid *Solid `json:"solid,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewCommandKernel resolves command on PATH.
func NewCommandKernel(command string, args []string, timeout time.Duration, logger *zap.Logger) (*CommandKernel, error) {
	if command == "" {
		return nil, fmt.Errorf("%w: no command configured", ErrKernelUnavailable)
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKernelUnavailable, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandKernel{path: path, args: args, timeout: timeout, logger: logger}, nil
}

func (k *CommandKernel) Name() string {
	return "command"
}

// Build runs locally; the solid only carries parameters.
func (k *CommandKernel) Build(ctx context.Context, params models.ShapeParameters) (*Solid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return BuildSolid(params)
}

func (k *CommandKernel) ExportMesh(ctx context.Context, solid *Solid, path string, tol Tolerance) error {
	_, err := k.call(ctx, commandRequest{Op: "export_mesh", Solid: solid, Path: path, Tolerance: &tol})
	return err
}

func (k *CommandKernel) ExportSolid(ctx context.Context, solid *Solid, path string) error {
	_, err := k.call(ctx, commandRequest{Op: "export_solid", Solid: solid, Path: path})
	return err
}

func (k *CommandKernel) ImportSolid(ctx context.Context, path string) (*Solid, error) {
	resp, err := k.call(ctx, commandRequest{Op: "import_solid", Path: path})
	if err != nil {
		return nil, err
	}
	if resp.Solid == nil {
		return nil, fmt.Errorf("%w: kernel returned no solid for %s", ErrUnsupportedSolid, path)
	}
	return resp.Solid, nil
}

func (k *CommandKernel) call(ctx context.Context, req commandRequest) (*commandResponse, error) {
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, k.path, k.args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	k.logger.Debug("kernel command finished",
		zap.String("op", req.Op),
		zap.String("path", req.Path),
		zap.Duration("duration", time.Since(start)),
		zap.Error(runErr))

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("kernel %s: %w", req.Op, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, fmt.Errorf("kernel %s failed: %s", req.Op, msg)
	}

	var resp commandResponse
	if out := bytes.TrimSpace(stdout.Bytes()); len(out) > 0 {
		if err := json.Unmarshal(out, &resp); err != nil {
			return nil, fmt.Errorf("kernel %s: invalid reply: %w", req.Op, err)
		}
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("kernel %s failed: %s", req.Op, resp.Error)
	}
	return &resp, nil
}
