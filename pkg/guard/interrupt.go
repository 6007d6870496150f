package guard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"igharvest/pkg/logger"
)

// Alerter raises a desktop alert; *ui.Notifier satisfies it
type Alerter interface {
	SendError(title, message string)
}

// PromptInterrupter pauses the run until the operator presses Enter
type PromptInterrupter struct {
	In      io.Reader
	Out     io.Writer
	Alerter Alerter
	// Interactive reports whether In is a terminal
	Interactive func() bool
}

// NewPromptInterrupter prompts on the process's stdin and stdout
func NewPromptInterrupter(alerter Alerter) *PromptInterrupter {
	return &PromptInterrupter{
		In:      os.Stdin,
		Out:     os.Stdout,
		Alerter: alerter,
		Interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// Interrupt warns, alerts and waits for Enter. Without a terminal it only
// logs and returns.
func (p *PromptInterrupter) Interrupt(ctx context.Context, violation error) error {
	if p.Alerter != nil {
		p.Alerter.SendError("igharvest paused", violation.Error())
	}

	if p.Interactive != nil && !p.Interactive() {
		logger.GetLogger().WithError(violation).Warn("Navigation violation with no terminal attached, continuing")
		return nil
	}

	fmt.Fprintf(p.Out, "\n!! %v\n!! Bring the browser back to the profile or a post, then press Enter to continue.\n", violation)

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(p.In).ReadString('\n')
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil && err != io.EOF {
			return err
		}
		logger.GetLogger().Info("Violation acknowledged")
		return nil
	}
}

// LogInterrupter only logs violations; used when nobody is watching
type LogInterrupter struct{}

// Interrupt logs the violation and returns immediately
func (LogInterrupter) Interrupt(ctx context.Context, violation error) error {
	logger.GetLogger().WithError(violation).Error("Navigation violation")
	return nil
}
