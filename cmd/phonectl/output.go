package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/jjgriff93/ai-contact-centre/internal/reconcile"
)

// render writes res to w. JSON output is the Result itself so scripts can
// rely on its field names; text output starts with header.
func render(w io.Writer, format, header string, res *reconcile.Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(w, header)
	switch res.Operation {
	case reconcile.OpList:
		renderOwned(w, res.Owned)
	case reconcile.OpSearch:
		renderCandidates(w, res.Candidates)
	case reconcile.OpRelease:
		renderReleases(w, res)
	default:
		renderReconcile(w, res)
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	return nil
}

func renderOwned(w io.Writer, owned []numbers.OwnedNumber) {
	if len(owned) == 0 {
		fmt.Fprintln(w, "No phone numbers owned.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tCOUNTRY\tTYPE\tCAPABILITIES\tMONTHLY COST\tPURCHASED")
	for _, n := range owned {
		purchased := "-"
		if !n.PurchasedAt.IsZero() {
			purchased = n.PurchasedAt.UTC().Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			n.E164, n.Country, n.Type, capabilityList(n.Capabilities), costOrDash(n.MonthlyCost), purchased)
	}
	tw.Flush()
}

func renderCandidates(w io.Writer, candidates []numbers.Candidate) {
	if len(candidates) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tCOUNTRY\tTYPE\tMONTHLY COST")
	for _, c := range candidates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.E164, c.Country, c.Type, costOrDash(c.MonthlyCost))
	}
	tw.Flush()
}

func renderReconcile(w io.Writer, res *reconcile.Result) {
	if res.Spec != nil {
		auto := "off"
		if res.Spec.AutoPurchase {
			auto = "on"
		}
		fmt.Fprintf(w, "Desired: %s (auto-purchase %s)\n", res.Spec, auto)
	}

	switch {
	case res.AlreadySatisfied && res.Satisfying != nil:
		fmt.Fprintf(w, "Satisfied by: %s (already owned)\n", res.Satisfying.E164)
	case res.Purchased() != "":
		p := res.Purchase
		fmt.Fprintf(w, "Purchased: %s (order %s, %d attempt%s)\n",
			res.Purchased(), p.Order.ID, p.Attempts, plural(p.Attempts))
	case res.Purchase != nil && res.Purchase.Order != nil:
		fmt.Fprintf(w, "Order %s is %s\n", res.Purchase.Order.ID, res.Purchase.Order.Status)
	case res.PurchaseSkipped:
		fmt.Fprintln(w, "Purchase: skipped")
	}
	if res.Purchase != nil && len(res.Purchase.Unavailable) > 0 {
		fmt.Fprintf(w, "Taken before purchase: %s\n", strings.Join(res.Purchase.Unavailable, ", "))
	}

	renderReleases(w, res)

	if res.Operation == reconcile.OpEnsure || res.Operation == reconcile.OpPlan {
		state := "no"
		if res.Converged() {
			state = "yes"
		}
		fmt.Fprintf(w, "Converged: %s\n", state)
	}
}

func renderReleases(w io.Writer, res *reconcile.Result) {
	if len(res.Released) > 0 {
		fmt.Fprintf(w, "Released: %s\n", strings.Join(res.Released, ", "))
	}
	if len(res.Unreleased) > 0 {
		fmt.Fprintf(w, "Not released: %s\n", strings.Join(res.Unreleased, ", "))
	}
	for _, f := range res.ReleaseFailures {
		fmt.Fprintf(w, "Release failed: %s: %s\n", f.E164, f.Error)
	}
}

func capabilityList(caps []numbers.Capability) string {
	if len(caps) == 0 {
		return "-"
	}
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func costOrDash(c numbers.Cost) string {
	if c.IsZero() {
		return "-"
	}
	return c.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
