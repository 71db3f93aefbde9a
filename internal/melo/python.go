package melo

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/example/go-melo-export/internal/onnx"
)

// DefaultScript is the helper location relative to the repository root.
var DefaultScript = filepath.Join("scripts", "melo_export.py")

// Helper runs scripts/melo_export.py, the only code that touches torch.
type Helper struct {
	PythonBin string
	Script    string
	Stderr    io.Writer
}

// NewHelper resolves the interpreter and script. An empty pythonBin is
// detected from the shebang of the installed melo CLI.
func NewHelper(pythonBin, script string) (*Helper, error) {
	if pythonBin == "" {
		pythonBin = detectMeloPython()
	}
	if _, err := exec.LookPath(pythonBin); err != nil {
		return nil, fmt.Errorf("%w: python interpreter %q not found: %v", ErrConfig, pythonBin, err)
	}

	if script == "" {
		script = DefaultScript
	}
	resolved, err := resolveScriptPath(script)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve export helper: %v", ErrConfig, err)
	}

	return &Helper{PythonBin: pythonBin, Script: resolved, Stderr: io.Discard}, nil
}

// Run executes one helper mode. stdin and stdout may be nil.
func (h *Helper) Run(ctx context.Context, mode string, args []string, stdin io.Reader, stdout io.Writer) error {
	argv := append([]string{h.Script, mode}, args...)
	cmd := exec.CommandContext(ctx, h.PythonBin, argv...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}
	cmd.Stderr = h.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = io.Discard
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run helper %s: %w", mode, err)
	}
	return nil
}

// CheckTooling verifies the interpreter can import what the helper needs.
func (h *Helper) CheckTooling(ctx context.Context) error {
	check := exec.CommandContext(ctx, h.PythonBin, "-c", "import melo, torch, onnx")
	check.Stdout = io.Discard
	check.Stderr = h.Stderr
	if check.Stderr == nil {
		check.Stderr = os.Stderr
	}
	if err := check.Run(); err != nil {
		return fmt.Errorf("%w: python tooling dependencies missing (need melo, torch, onnx): %v", ErrConfig, err)
	}
	return nil
}

func checkpointArgs(ck Checkpoint) []string {
	args := []string{"--language", ck.Language}
	if ck.ConfigPath != "" {
		args = append(args, "--config", ck.ConfigPath)
	}
	if ck.CkptPath != "" {
		args = append(args, "--ckpt", ck.CkptPath)
	}
	if ck.Device != "" {
		args = append(args, "--device", ck.Device)
	}
	return args
}

// Describe loads the model and returns its hyperparameter bag.
func (h *Helper) Describe(ctx context.Context, ck Checkpoint) (*Hyperparams, error) {
	var out bytes.Buffer
	if err := h.Run(ctx, "describe", checkpointArgs(ck), nil, &out); err != nil {
		return nil, err
	}
	return ParseHyperparams(out.Bytes())
}

// PythonModel calls the native infer entry point through the helper.
type PythonModel struct {
	helper *Helper
	ck     Checkpoint
}

func NewPythonModel(h *Helper, ck Checkpoint) *PythonModel {
	return &PythonModel{helper: h, ck: ck}
}

type inferResponse struct {
	Outputs []*onnx.Tensor `json:"outputs"`
}

func (m *PythonModel) Infer(ctx context.Context, in InferInputs) ([]*onnx.Tensor, error) {
	req, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode infer inputs: %w", err)
	}

	var out bytes.Buffer
	if err := m.helper.Run(ctx, "infer", checkpointArgs(m.ck), bytes.NewReader(req), &out); err != nil {
		return nil, err
	}

	var resp inferResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode infer outputs: %w", err)
	}
	if len(resp.Outputs) == 0 {
		return nil, fmt.Errorf("%w: infer returned no outputs", ErrContract)
	}
	return resp.Outputs, nil
}

func detectMeloPython() string {
	meloBin, err := exec.LookPath("melo")
	if err != nil {
		return "python3"
	}
	fh, err := os.Open(meloBin)
	if err != nil {
		return "python3"
	}
	defer fh.Close()

	s := bufio.NewScanner(fh)
	if !s.Scan() {
		return "python3"
	}
	line := strings.TrimSpace(s.Text())
	if !strings.HasPrefix(line, "#!") {
		return "python3"
	}
	interpreter := strings.TrimSpace(strings.TrimPrefix(line, "#!"))
	if interpreter == "" {
		return "python3"
	}
	if _, err := os.Stat(interpreter); err != nil {
		return "python3"
	}
	return interpreter
}

func resolveScriptPath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		if _, err := os.Stat(rel); err != nil {
			return "", err
		}
		return rel, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	paths := []string{
		filepath.Join(cwd, rel),
		filepath.Join(cwd, "..", "..", rel),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Clean(p), nil
		}
	}

	return "", fmt.Errorf("script %q not found from %s", rel, cwd)
}
