package transform

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ExecInvoker runs transform operations as subprocesses. Each operation
// maps to an argv template; the placeholders {inputs} and {output} expand
// to the source file paths and the destination path, and {param:NAME} to a
// parameter value.
type ExecInvoker struct {
	// Commands maps operation name to its argv template.
	Commands map[string][]string
	// WorkDir holds the temporary files exchanged with the subprocess.
	WorkDir string
	Log     *zap.Logger
}

// NewExecInvoker creates an invoker with the given operation table.
func NewExecInvoker(commands map[string][]string, workDir string, log *zap.Logger) *ExecInvoker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecInvoker{Commands: commands, WorkDir: workDir, Log: log}
}

func (e *ExecInvoker) Invoke(ctx context.Context, operation string, params map[string]interface{}, sources []io.Reader) (io.ReadCloser, error) {
	argv, ok := e.Commands[operation]
	if !ok {
		return nil, errors.Errorf("no command configured for operation %q", operation)
	}

	tmp, err := os.MkdirTemp(e.WorkDir, "transform-"+operation+"-*")
	if err != nil {
		return nil, errors.Wrap(err, "create transform scratch dir")
	}
	defer os.RemoveAll(tmp)

	inputs := make([]string, 0, len(sources))
	for i, src := range sources {
		path := filepath.Join(tmp, fmt.Sprintf("input%03d", i))
		if err := spool(path, src); err != nil {
			return nil, errors.Wrapf(err, "spool input %d for %s", i, operation)
		}
		inputs = append(inputs, path)
	}
	output := filepath.Join(tmp, "output")

	args, err := expandArgv(argv, inputs, output, params)
	if err != nil {
		return nil, errors.Wrapf(err, "operation %s", operation)
	}

	e.Log.Debug("invoking transform",
		zap.String("operation", operation),
		zap.Strings("argv", args),
		zap.Int("sources", len(sources)))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = tmp
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, errors.Wrapf(err, "operation %s failed: %s", operation, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, errors.Wrapf(err, "operation %s produced no output", operation)
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func spool(path string, src io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func expandArgv(argv, inputs []string, output string, params map[string]interface{}) ([]string, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	var args []string
	for _, a := range argv {
		switch {
		case a == "{inputs}":
			args = append(args, inputs...)
		case a == "{output}":
			args = append(args, output)
		case strings.HasPrefix(a, "{param:") && strings.HasSuffix(a, "}"):
			name := strings.TrimSuffix(strings.TrimPrefix(a, "{param:"), "}")
			v, ok := params[name]
			if !ok {
				return nil, errors.Errorf("missing parameter %q (available: %s)", name, paramNames(params))
			}
			args = append(args, fmt.Sprintf("%v", v))
		default:
			args = append(args, a)
		}
	}
	return args, nil
}

func paramNames(params map[string]interface{}) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
