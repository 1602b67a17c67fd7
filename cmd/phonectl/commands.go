package main

import (
	"fmt"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/jjgriff93/ai-contact-centre/internal/config"
	"github.com/jjgriff93/ai-contact-centre/internal/matcher"
	"github.com/jjgriff93/ai-contact-centre/internal/numbers"
	"github.com/jjgriff93/ai-contact-centre/internal/reconcile"
	"github.com/spf13/cobra"
)

var (
	specCountry      string
	specType         string
	specAutoPurchase bool
	specSMS          bool
	specAreaCode     string

	assumeYes       bool
	dryRun          bool
	keepAllMatching bool
	wantNumber      string
	searchLimit     int
	listMatch       string
)

var keepAllPolicy matcher.Policy = matcher.KeepAllMatching{}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the phone numbers owned by the resource",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return reportEarly(cmd, reconcile.OpList, nil, err)
		}
		res, err := s.reconciler.List(cmd.Context())
		if err == nil && listMatch != "" {
			res.Owned = filterOwned(res.Owned, listMatch)
		}
		return s.finish(cmd, res, err)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Show numbers available for purchase without buying anything",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return reportEarly(cmd, reconcile.OpSearch, nil, err)
		}
		spec, err := s.cfg.SearchSpec()
		if err != nil {
			return reportEarly(cmd, reconcile.OpSearch, s, err)
		}
		if searchLimit < 1 {
			return reportEarly(cmd, reconcile.OpSearch, s, usageError(fmt.Errorf("--limit must be at least 1, got %d", searchLimit)))
		}
		res, err := s.reconciler.Search(cmd.Context(), spec, searchLimit)
		return s.finish(cmd, res, err)
	},
}

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Purchase one number matching the desired country and type",
	Long: `Purchase one number matching the desired country and type. Nothing is
released. Without --yes an interactive terminal is asked for confirmation and
a non-interactive run only reports what it would buy.`,
	Example: `  phonectl purchase --country GB --type toll-free --yes
  phonectl purchase --country US --type geographic --number +12065550100 --yes`,
	Args: noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return reportEarly(cmd, reconcile.OpPurchase, nil, err)
		}
		spec, err := s.cfg.SearchSpec()
		if err != nil {
			return reportEarly(cmd, reconcile.OpPurchase, s, err)
		}
		question := fmt.Sprintf("Purchase a %s number?", spec)
		if wantNumber != "" {
			question = fmt.Sprintf("Purchase %s (%s)?", wantNumber, spec)
		}
		confirmed := assumeYes || (stdinIsTerminal() && confirm(cmd, question))
		res, err := s.reconciler.Purchase(cmd.Context(), spec, wantNumber, confirmed)
		return s.finish(cmd, res, err)
	},
}

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Reconcile the resource to hold exactly one number of the desired type",
	Long: `Reconcile the resource so it holds exactly one number matching the desired
country and type. A missing number is purchased only when auto-purchase is
enabled, and numbers that do not match are released only after the new number
is in place. Changes need --yes or an interactive confirmation; otherwise the
drift is reported and nothing is changed.`,
	Example: `  phonectl ensure --country GB --type toll-free --auto-purchase --yes
  phonectl ensure --dry-run -o json`,
	Args: noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return reportEarly(cmd, reconcile.OpEnsure, nil, err)
		}
		spec, err := s.cfg.Spec()
		if err != nil {
			return reportEarly(cmd, reconcile.OpEnsure, s, err)
		}
		ctx := cmd.Context()

		var res *reconcile.Result
		switch {
		case dryRun:
			res, err = s.reconciler.Plan(ctx, spec)
		case assumeYes:
			res, err = s.reconciler.Ensure(ctx, spec, true)
		case spec.AutoPurchase && stdinIsTerminal():
			res, err = s.reconciler.Plan(ctx, spec)
			if err == nil && needsChanges(res) {
				describePlan(cmd.ErrOrStderr(), res)
				if confirm(cmd, "Proceed?") {
					res, err = s.reconciler.Ensure(ctx, spec, true)
				}
			}
		default:
			res, err = s.reconciler.Ensure(ctx, spec, false)
		}
		return s.finish(cmd, res, err)
	},
}

var releaseCmd = &cobra.Command{
	Use:     "release <e164>",
	Short:   "Release one phone number",
	Example: `  phonectl release +15551234567 --yes`,
	Args:    exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return reportEarly(cmd, reconcile.OpRelease, nil, err)
		}
		number := args[0]
		confirmed := assumeYes ||
			(stdinIsTerminal() && confirm(cmd, fmt.Sprintf("Release %s? This cannot be undone.", number)))
		res, err := s.reconciler.Release(cmd.Context(), number, confirmed)
		return s.finish(cmd, res, err)
	},
}

func init() {
	listCmd.Flags().StringVar(&listMatch, "match", "", "only show numbers matching a glob such as '+44*'")

	addSpecFlags(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "maximum number of candidates to show")

	addSpecFlags(purchaseCmd)
	purchaseCmd.Flags().StringVar(&wantNumber, "number", "", "buy this specific E.164 number if it is offered")
	addYesFlag(purchaseCmd)

	addSpecFlags(ensureCmd)
	ensureCmd.Flags().BoolVar(&specAutoPurchase, "auto-purchase", false, "purchase a number when none matches (env: PHONE_AUTO_PURCHASE)")
	ensureCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without changing anything")
	ensureCmd.Flags().BoolVar(&keepAllMatching, "keep-all-matching", false, "keep every matching number instead of exactly one")
	addYesFlag(ensureCmd)
	ensureCmd.MarkFlagsMutuallyExclusive("dry-run", "yes")

	addYesFlag(releaseCmd)
}

func addSpecFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&specCountry, "country", "", "ISO country code, e.g. GB (env: PHONE_COUNTRY)")
	cmd.Flags().StringVar(&specType, "type", "", "number type: toll-free or geographic (env: PHONE_NUMBER_TYPE)")
	cmd.Flags().BoolVar(&specSMS, "sms", false, "request SMS capability (env: PHONE_SMS_ENABLED)")
	cmd.Flags().StringVar(&specAreaCode, "area-code", "", "preferred area code, US and CA only (env: PHONE_AREA_CODE)")
}

func addYesFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "confirm purchases and releases without prompting")
}

// applyFlags overlays flags the user set on cfg; flags win over every
// other source.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("country") {
		cfg.Country = specCountry
	}
	if flags.Changed("type") {
		cfg.NumberType = specType
	}
	if flags.Changed("auto-purchase") {
		v := specAutoPurchase
		cfg.AutoPurchase = &v
	}
	if flags.Changed("sms") {
		cfg.SMSEnabled = specSMS
	}
	if flags.Changed("area-code") {
		cfg.AreaCode = specAreaCode
	}
	return nil
}

func filterOwned(owned []numbers.OwnedNumber, pattern string) []numbers.OwnedNumber {
	var out []numbers.OwnedNumber
	for _, n := range owned {
		if wildcard.Match(pattern, n.E164) {
			out = append(out, n)
		}
	}
	return out
}

func needsChanges(plan *reconcile.Result) bool {
	return plan.PurchaseSkipped || len(plan.Unreleased) > 0
}
