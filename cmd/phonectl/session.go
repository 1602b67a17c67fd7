package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jjgriff93/ai-contact-centre/internal/config"
	"github.com/jjgriff93/ai-contact-centre/internal/credentials"
	"github.com/jjgriff93/ai-contact-centre/internal/logging"
	"github.com/jjgriff93/ai-contact-centre/internal/metrics"
	"github.com/jjgriff93/ai-contact-centre/internal/reconcile"
	"github.com/jjgriff93/ai-contact-centre/pkg/acs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// providerFactory builds the provider for a validated config. Tests swap it
// for an in-memory fake.
var providerFactory = newACSProvider

func newACSProvider(ctx context.Context, cfg *config.Config) (reconcile.Provider, error) {
	tokens, err := credentials.TokenSource(ctx, credentials.Settings{
		AccessToken:   cfg.AccessToken,
		TenantID:      cfg.TenantID,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		AuthorityHost: cfg.AuthorityHost,
		Scope:         acs.Scope,
		Timeout:       cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	endpoint, err := config.NormalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return acs.NewClient(acs.ClientConfig{
		Endpoint:     endpoint,
		TokenSource:  tokens,
		Timeout:      cfg.RequestTimeout,
		PollInterval: cfg.PollInterval,
		UserAgent:    "phonectl/" + Version,
		Observer:     metrics.ObserveProviderRequest,
	})
}

// session is one configured invocation.
type session struct {
	cfg        *config.Config
	runID      string
	reconciler *reconcile.Reconciler
}

func newSession(cmd *cobra.Command) (*session, error) {
	if outputFormat != "text" && outputFormat != "json" {
		return nil, usageError(fmt.Errorf("--output must be text or json, got %q", outputFormat))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var logOutput io.Writer
	if w := cmd.ErrOrStderr(); w != os.Stderr {
		logOutput = w
	}
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "phonectl",
		Output:    logOutput,
	})
	runID := logging.NewRunID()
	logging.WithRunID(runID)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ceiling, err := cfg.CostCeiling()
	if err != nil {
		return nil, usageError(err)
	}

	provider, err := providerFactory(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	opts := reconcile.DefaultOptions()
	opts.MaxPurchaseAttempts = cfg.MaxPurchaseAttempts
	opts.MaxRetries = cfg.MaxRetries
	opts.RequestTimeout = cfg.RequestTimeout
	opts.SearchTimeout = cfg.SearchTimeout
	opts.OrderTimeout = cfg.OrderTimeout
	opts.Backoff = reconcile.Backoff{
		Initial:    cfg.PollInterval,
		Multiplier: 2,
		Jitter:     0.1,
		Max:        cfg.PollMaxInterval,
	}
	opts.CostCeiling = ceiling
	if keepAllMatching {
		opts.Policy = keepAllPolicy
	}

	log.Debug().
		Str("command", cmd.Name()).
		Str("resource", cfg.ResourceName()).
		Msg("Session ready")

	return &session{
		cfg:        cfg,
		runID:      runID,
		reconciler: reconcile.New(provider, opts),
	}, nil
}

// finish stamps, records and prints res, then hands back err for the exit
// code.
func (s *session) finish(cmd *cobra.Command, res *reconcile.Result, err error) error {
	if res == nil {
		return err
	}
	res.RunID = s.runID

	outcome := "ok"
	if err != nil {
		outcome = outcomeLabel(err)
	}
	metrics.RecordResult(res, outcome, time.Now())
	if path := s.cfg.MetricsTextfile; path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			log.Warn().Err(werr).Str("path", path).Msg("Failed to write metrics textfile")
		}
	}

	if rerr := render(cmd.OutOrStdout(), outputFormat, s.header(), res); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// reportEarly hands back err for failures that happen before the reconciler
// runs. JSON callers still get a result document naming the error.
func reportEarly(cmd *cobra.Command, op reconcile.Operation, s *session, err error) error {
	if outputFormat != "json" {
		return err
	}
	res := &reconcile.Result{Operation: op, Error: err.Error()}
	if s != nil {
		res.RunID = s.runID
	}
	if rerr := render(cmd.OutOrStdout(), outputFormat, "", res); rerr != nil {
		log.Warn().Err(rerr).Msg("Failed to write result")
	}
	return err
}

func (s *session) header() string {
	endpoint, _ := config.NormalizeEndpoint(s.cfg.Endpoint)
	return fmt.Sprintf("ACS resource: %s (%s)", s.cfg.ResourceName(), endpoint)
}

func outcomeLabel(err error) string {
	switch exitCode(err) {
	case exitNoInventory:
		return "no_inventory"
	case exitExhausted:
		return "exhausted"
	case exitTimeout:
		return "timeout"
	case exitNotFound:
		return "not_found"
	case exitUsage:
		return "invalid"
	}
	return "error"
}
