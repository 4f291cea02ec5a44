package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard"
	"github.com/goliatone/go-formwizard/pkg/payload"
	"github.com/goliatone/go-formwizard/pkg/renderers/tui"
	"github.com/goliatone/go-formwizard/pkg/submission"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func newFillCmd(a *app) *cobra.Command {
	var (
		sinkURL string
		extras  []string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "fill <form-id>",
		Short: "Fill a form interactively and submit it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := a.forms()
			if err != nil {
				return err
			}
			if sinkURL == "" {
				sinkURL = a.cfg.SinkURL
			}
			extraValues, err := parseExtras(extras)
			if err != nil {
				return err
			}

			opts := []wizard.Option{
				wizard.WithLogger(a.logger),
				wizard.WithExtras(extraValues),
			}
			if dryRun {
				opts = append(opts, wizard.WithSubmitter(printSubmitter(cmd)))
			}
			w, err := formwizard.NewWizard(registry, args[0], sinkURL, opts...)
			if err != nil {
				return err
			}

			renderer := tui.New(tui.WithLogger(a.logger))
			out, err := renderer.Run(cmd.Context(), w)
			if errors.Is(err, tui.ErrAborted) {
				return nil
			}
			if err != nil {
				return err
			}
			a.logger.Info("form submitted", zap.String("form", args[0]), zap.String("reference", out.Result.Reference()))
			return nil
		},
	}
	cmd.Flags().StringVar(&sinkURL, "sink", "", "submission sink base URL (default from config)")
	cmd.Flags().StringArrayVar(&extras, "extra", nil, "context value visible to expressions as extras.<key> (key=value)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the payload instead of submitting it")
	return cmd
}

// printSubmitter writes the assembled payload and acknowledges it locally.
func printSubmitter(cmd *cobra.Command) wizard.Submitter {
	return wizard.SubmitterFunc(func(_ context.Context, p *payload.Payload) (*submission.Result, error) {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(p.Body); err != nil {
			return nil, err
		}
		for _, att := range p.Attachments {
			fmt.Fprintf(cmd.OutOrStdout(), "attachment %s: %s\n", att.Role, att.Path)
		}
		return &submission.Result{Form: p.Form, ReferenceNumber: "DRY-RUN", Name: p.Name, Email: p.Email}, nil
	})
}

func parseExtras(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --extra %q, want key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
