package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var errAborted = errors.New("operation aborted: confirmation did not match")

// confirmDevice refuses blocked devices and then asks for the device's confirmation phrase,
// either from given or interactively from the command's input.
func confirmDevice(cmd *cobra.Command, rt *Runtime, device, operation, given string) error {
	if ok, reason := rt.Classifier.Validate(device, operation); !ok {
		return fmt.Errorf("%s %s: %s", operation, device, reason)
	}
	a, err := rt.Classifier.Assess(device)
	if err != nil {
		return fmt.Errorf("failed to assess %s: %w", device, err)
	}
	if given != "" {
		if !a.Confirm(given) {
			return fmt.Errorf("%w (expected %q)", errAborted, a.ConfirmationPhrase())
		}
		return nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), a.ConfirmationMessage(operation))
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !a.Confirm(line) {
		return errAborted
	}
	return nil
}
