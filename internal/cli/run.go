package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/rishimeka/astro/internal/presentation/tui"
	"github.com/rishimeka/astro/pkg/adapters/file"
	"github.com/rishimeka/astro/pkg/client"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/stream"
)

// RunOptions configures one invocation of the run command.
type RunOptions struct {
	// Server is the base URL of the astro server.
	Server string

	// Target is a constellation definition file or the id of a
	// constellation already on the server.
	Target string

	// Input seeds the run.
	Input string

	// Yes answers every confirmation gate with proceed.
	Yes bool
}

// errDetached signals that a confirmation gate was left unanswered because
// there is no terminal to prompt on. The run stays paused server-side.
var errDetached = errors.New("confirmation left pending")

// RunFlow starts a run and follows its event stream until it terminates,
// printing progress lines and a final summary. Confirmation gates are
// answered interactively, or automatically with --yes.
func RunFlow(ctx context.Context, opts RunOptions, logger *slog.Logger) error {
	api := client.New(opts.Server, client.WithLogger(logger))

	constellationID, err := resolveConstellation(ctx, api, opts.Target)
	if err != nil {
		return err
	}

	runID, err := api.StartRun(ctx, constellationID, opts.Input)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	tail := tui.NewTail(os.Stdout)
	pauses := make(chan domain.Confirmation, 1)
	listener := func(st domain.ExecutionState) {
		tail.Update(st)
		if st.Status == domain.RunAwaitingConfirmation && st.AwaitingConfirmation != nil {
			select {
			case pauses <- *st.AwaitingConfirmation:
			default:
			}
		}
	}

	viewer := stream.New(api, api, stream.WithLogger(logger))
	if err := viewer.Open(ctx, runID, stream.WithListener(listener)); err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer viewer.CloseAll()

	type waitResult struct {
		state domain.ExecutionState
		err   error
	}
	done := make(chan waitResult, 1)
	go func() {
		st, err := viewer.Wait(ctx, runID)
		done <- waitResult{st, err}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-pauses:
			err := answerConfirmation(ctx, viewer, runID, c, opts.Yes)
			if errors.Is(err, errDetached) {
				fmt.Printf("\nrun %s is paused awaiting confirmation.\n", runID)
				fmt.Printf("Answer it with 'astro runs confirm %s' or rerun with --yes.\n", runID)
				return nil
			}
			if err != nil {
				return err
			}

		case res := <-done:
			if res.err != nil {
				return fmt.Errorf("event stream ended: %w", res.err)
			}
			return printSummary(res.state)
		}
	}
}

// resolveConstellation turns the run target into a constellation id. A path
// to an existing file is loaded and saved to the server first; anything
// else is assumed to be an id.
func resolveConstellation(ctx context.Context, api *client.Client, target string) (string, error) {
	if _, err := os.Stat(target); err != nil {
		return target, nil
	}

	c, err := file.Load(target)
	if err != nil {
		return "", err
	}
	if err := api.CreateConstellation(ctx, c); err != nil {
		var verr *client.ValidationError
		if errors.As(err, &verr) {
			fmt.Print(tui.FormatFindings(verr.Findings))
			return "", fmt.Errorf("constellation %s failed validation", c.ID)
		}
		return "", fmt.Errorf("failed to save constellation: %w", err)
	}
	return c.ID, nil
}

func answerConfirmation(ctx context.Context, viewer *stream.Client, runID string, c domain.Confirmation, yes bool) error {
	if yes {
		fmt.Printf("auto-confirming %s\n", c.NodeID)
		return sendDecision(ctx, viewer, runID, true, "")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errDetached
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("Proceed with %s? [y/N]: ", c.NodeID)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return errDetached
	}

	proceed := false
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		proceed = true
	}

	var extra string
	if proceed {
		fmt.Print("Additional context (enter to skip): ")
		line, err := reader.ReadString('\n')
		if err == nil {
			extra = strings.TrimSpace(line)
		}
	}
	return sendDecision(ctx, viewer, runID, proceed, extra)
}

func sendDecision(ctx context.Context, viewer *stream.Client, runID string, proceed bool, extra string) error {
	_, err := viewer.Confirm(ctx, runID, proceed, extra)
	if errors.Is(err, domain.ErrNoConfirmationPending) {
		// The gate was answered elsewhere while we prompted.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}
	return nil
}

func printSummary(st domain.ExecutionState) error {
	render := tui.NewRenderer()
	md := tui.RunSummary(st)
	out, err := render(md)
	if err != nil {
		out = md
	}
	fmt.Print(out)

	if st.Status != domain.RunCompleted {
		if st.Error != "" {
			return fmt.Errorf("run %s: %s", st.Status, st.Error)
		}
		return fmt.Errorf("run %s", st.Status)
	}
	return nil
}
