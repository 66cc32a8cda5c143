package protocol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Driver owns exactly one child process per session and runs the exchange
// loop against its pipes. The child is terminated on any protocol failure;
// the only clean exit is the terminal marker.
type Driver struct {
	Log     zerolog.Logger
	Timeout time.Duration // per-read bound; 0 waits indefinitely
}

// Run spawns the child command and exchanges frames until the terminal
// marker, a protocol failure, or child exit.
func (d *Driver) Run(ctx context.Context, fn Transformer, name string, args ...string) error {
	session := uuid.NewString()
	log := d.Log.With().Str("session", session).Str("child", name).Logger()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start child: %w", err)
	}
	log.Info().Int("pid", cmd.Process.Pid).Msg("child started")

	exchErr := Exchange(stdout, stdin, d.Timeout, fn, log)
	stdin.Close()
	if exchErr != nil {
		if killErr := cmd.Process.Kill(); killErr != nil {
			log.Warn().Err(killErr).Msg("kill after protocol failure")
		}
		cmd.Wait()
		log.Error().Err(exchErr).Msg("session failed")
		return exchErr
	}
	if err := cmd.Wait(); err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			return fmt.Errorf("%w: child exited: %v", ErrProtocolDesync, err)
		}
		return fmt.Errorf("wait child: %w", err)
	}
	log.Info().Msg("session complete")
	return nil
}
