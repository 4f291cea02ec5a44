package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formwizard/pkg/schema"
)

func newFormsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forms",
		Short: "List the available forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := a.forms()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTEPS\tENDPOINT\tTITLE")
			for _, id := range registry.IDs() {
				form, _ := registry.Form(id)
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", form.ID, form.StepCount(), form.Endpoint, form.Title)
			}
			return tw.Flush()
		},
	}
}

func newLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [dir...]",
		Short: "Check form documents for authoring errors",
		Long: `Compile every form document and report authoring errors: unknown
references, visibility cycles, misplaced fields, broken confirmation
templates. Without arguments the configured forms are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{a.cfg.FormsDir}
			}
			var failed bool
			for _, dir := range args {
				var (
					registry *schema.Registry
					err      error
				)
				if dir == "" {
					registry, err = schema.LoadFS(schema.EmbeddedFS())
					dir = "bundled"
				} else {
					registry, err = schema.LoadDir(dir)
				}
				if err != nil {
					failed = true
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n%v\n", dir, err)
					continue
				}
				for _, id := range registry.IDs() {
					form, _ := registry.Form(id)
					fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d steps)\n", id, form.StepCount())
				}
			}
			if failed {
				return errors.New("lint: authoring errors found")
			}
			return nil
		},
	}
}
