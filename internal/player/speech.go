package player

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Speech announces text by running an external text-to-speech command with the text as last argument.
type Speech struct {
	command string
	args    []string
}

// NewSpeech creates a [Speech] announcer.
func NewSpeech(command string, args []string) *Speech {
	return &Speech{command: command, args: append([]string(nil), args...)}
}

// Announce runs the speech command and waits for it to finish.
func (s *Speech) Announce(ctx context.Context, text string) error {
	args := append(append([]string(nil), s.args...), text)
	out, err := exec.CommandContext(ctx, s.command, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("speech command %s failed: %w: %s", s.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}
