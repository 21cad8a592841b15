package platform

import (
	"context"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	utilexec "k8s.io/utils/exec"
)

// runner executes OS tools and logs every invocation
type runner struct {
	exec utilexec.Interface
}

// output runs a query command and returns its stdout
func (r runner) output(ctx context.Context, name string, args ...string) ([]byte, error) {
	log.WithFields(log.Fields{"cmd": name, "args": strings.Join(args, " ")}).Debug("Running query command")
	out, err := r.exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// run runs a mutating command; the combined output is attached to the error on failure
func (r runner) run(ctx context.Context, name string, args ...string) error {
	return r.runWithInput(ctx, nil, name, args...)
}

func (r runner) runWithInput(ctx context.Context, stdin io.Reader, name string, args ...string) error {
	fields := log.Fields{"cmd": name, "args": strings.Join(args, " ")}
	log.WithFields(fields).Debug("Running command")
	cmd := r.exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.SetStdin(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		log.WithFields(fields).WithError(err).WithField("output", msg).Error("Command failed")
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// available reports whether a tool can be found on PATH
func (r runner) available(name string) bool {
	_, err := r.exec.LookPath(name)
	return err == nil
}
