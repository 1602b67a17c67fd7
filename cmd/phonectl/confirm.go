package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jjgriff93/ai-contact-centre/internal/reconcile"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// stdinIsTerminal reports whether confirmation can be asked for. Tests
// override it.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s (yes/no): ", question)
	reader := bufio.NewReader(cmd.InOrStdin())
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	if response != "yes" && response != "y" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled, nothing was changed")
		return false
	}
	return true
}

// describePlan prints the changes an ensure run is about to make.
func describePlan(w io.Writer, plan *reconcile.Result) {
	if plan.PurchaseSkipped && plan.Spec != nil {
		fmt.Fprintf(w, "Will purchase one %s number.\n", plan.Spec)
	}
	for _, n := range plan.Unreleased {
		fmt.Fprintf(w, "Will release %s.\n", n)
	}
}
