package task

import (
	"context"
	"io"
	"os/exec"
)

// execCommand adapts *exec.Cmd to the Command interface RunProcess
// expects, the same exec.Command construction the teacher uses for
// git subprocess calls (internal/ingest/git.go).
type execCommand struct {
	cmd *exec.Cmd
}

// NewCommand builds a Command for RunProcess that runs name with args
// under ctx.
func NewCommand(ctx context.Context, name string, args ...string) Command {
	return &execCommand{cmd: exec.CommandContext(ctx, name, args...)}
}

func (e *execCommand) SetStderr(w io.Writer) { e.cmd.Stderr = w }
func (e *execCommand) Run() error            { return e.cmd.Run() }
