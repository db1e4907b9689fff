package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

const (
	defaultShellTimeout = 5 * time.Minute
	maxShellOutput      = 64 * 1024
)

// ShellTool runs a shell command with the workspace as working directory.
// The command inherits the bot's environment, so tools like git and gh are
// available when installed on the host.
type ShellTool struct {
	Workspace string
	Timeout   time.Duration
}

func (t *ShellTool) Definition() (string, string, map[string]interface{}) {
	return "bash", "Run a shell command in the workspace directory",
		schema(map[string]string{"command": "Shell command to execute"}, "command")
}

// Execute runs the command via bash -c, capped by the configured timeout.
func (t *ShellTool) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	command, err := stringArg(input, "command")
	if err != nil {
		return "", err
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultShellTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = t.Workspace

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()

	output := out.String()
	if len(output) > maxShellOutput {
		output = output[:maxShellOutput] + "\n[truncated]"
	}

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("bash: command timed out after %s\n%s", timeout, output)
		}
		// Non-zero exit is still useful output for the model.
		return fmt.Sprintf("%s\n[exit: %v]", output, runErr), nil
	}
	return output, nil
}
