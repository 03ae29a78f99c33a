package task

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// RunProcess starts name/taskType as a single-shard task whose work is
// an external command, run through the process pool rather than the
// thread pool. This is for work that genuinely wants OS-level
// isolation (an external converter, a model server's CLI) rather than
// an in-process goroutine — the same exec.Command idiom the teacher
// uses to shell out to git (internal/ingest/git.go's LoadGitCommits),
// generalized to an arbitrary argv and bounded by the process pool's
// capacity instead of running unbounded.
func (m *Manager) RunProcess(ctx context.Context, name, taskType string, newCmd func(ctx context.Context) Command) string {
	return m.RunSharded(ctx, name, taskType, 1, func(ctx context.Context, shard int, report func(current, estimated int)) error {
		select {
		case m.procSem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-m.procSem }()

		report(0, 1)
		cmd := newCmd(ctx)
		var stderr bytes.Buffer
		cmd.SetStderr(&stderr)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("task: process failed: %w: %s", err, stderr.String())
		}
		report(1, 1)
		return nil
	})
}

// Command is the narrow slice of *exec.Cmd that RunProcess needs,
// kept as an interface so tests can stub it without spawning a real
// process.
type Command interface {
	SetStderr(w io.Writer)
	Run() error
}
