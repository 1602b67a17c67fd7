package main

import (
	"errors"
	"fmt"
	"strings"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitNoInventory = 3
	exitExhausted   = 4
	exitTimeout     = 5
	exitNotFound    = 6
)

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, internalerrors.ErrPurchaseTimeout):
		return exitTimeout
	case errors.Is(err, internalerrors.ErrPurchaseExhausted):
		return exitExhausted
	case errors.Is(err, internalerrors.ErrNoInventoryAvailable):
		return exitNoInventory
	case errors.Is(err, internalerrors.ErrInvalidInput):
		return exitUsage
	case errors.Is(err, internalerrors.ErrNotFound):
		return exitNotFound
	case strings.HasPrefix(err.Error(), "unknown command"):
		return exitUsage
	}
	return exitFailure
}

func usageError(err error) error {
	return fmt.Errorf("%w: %w", internalerrors.ErrInvalidInput, err)
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError(err)
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
