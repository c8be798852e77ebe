package radio

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
)

// CommandRunner runs an external program and returns its output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args, killing it when ctx is done.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("Running command",
		zap.String("cmd", name),
		zap.String("args", strings.Join(redactArgs(args), " ")),
	)
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// redactArgs hides the value following any credential flag.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		switch out[i] {
		case "wifi-sec.psk", "password", "802-11-wireless-security.psk":
			out[i+1] = "***"
		}
	}
	return out
}
