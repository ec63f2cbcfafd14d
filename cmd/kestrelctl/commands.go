package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/client"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/monitoring"
	"github.com/opensource-finance/kestrel/internal/threshold"
)

func classifyCommand(g *globals) *cobra.Command {
	var tf thresholdFlags
	var remote bool

	cmd := &cobra.Command{
		Use:   "classify VALUE",
		Short: "Classify a value against threshold bounds",
		Long:  "Classify a value against threshold bounds. Pass \"null\" for a missing value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value *float64
			if !strings.EqualFold(args[0], "null") {
				v, err := strconv.ParseFloat(args[0], 64)
				if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("value must be a finite number, got %q", args[0])
				}
				value = &v
			}
			t := tf.set(cmd)

			if remote {
				res, err := g.client().Classify(cmd.Context(), value, t)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Outcome)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), threshold.Classify(value, t))
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().BoolVar(&remote, "remote", false, "classify on the server instead of locally")
	return cmd
}

func validateCommand() *cobra.Command {
	var tf thresholdFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check threshold bounds for ordering violations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			violations := threshold.Validate(tf.set(cmd))
			if len(violations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "valid")
				return nil
			}
			for _, v := range violations {
				fmt.Fprintln(cmd.OutOrStdout(), "-", v)
			}
			return errors.New("thresholds are invalid")
		},
	}
	tf.register(cmd)
	return cmd
}

func layoutCommand() *cobra.Command {
	var tf thresholdFlags

	cmd := &cobra.Command{
		Use:   "layout [VALUE...]",
		Short: "Print the zone layout of threshold bounds over observed values",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseFloats(args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), threshold.BuildLayout(tf.set(cmd), values))
		},
	}
	tf.register(cmd)
	return cmd
}

func planCommand(g *globals) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage monitoring plans",
	}

	planCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := g.client().ListPlans(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range plans {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ID, p.Frequency, p.Name)
			}
			return nil
		},
	})

	var frequency, description string
	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := g.client().CreatePlan(cmd.Context(), monitoring.PlanInput{
				Name:        args[0],
				Description: description,
				Frequency:   domain.Frequency(frequency),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), plan)
		},
	}
	createCmd.Flags().StringVar(&frequency, "frequency", "QUARTERLY", "MONTHLY, QUARTERLY, SEMI_ANNUAL or ANNUAL")
	createCmd.Flags().StringVar(&description, "description", "", "plan description")
	planCmd.AddCommand(createCmd)

	var label string
	publishCmd := &cobra.Command{
		Use:   "publish PLAN_ID",
		Short: "Publish a new plan version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := g.client().PublishVersion(cmd.Context(), args[0], label)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published version %d (%s) with %d metrics\n", v.VersionNumber, v.ID, len(v.Metrics))
			return nil
		},
	}
	publishCmd.Flags().StringVar(&label, "label", "", "version label")
	planCmd.AddCommand(publishCmd)

	return planCmd
}

func cycleCommand(g *globals) *cobra.Command {
	cycleCmd := &cobra.Command{
		Use:   "cycle",
		Short: "Inspect and move monitoring cycles",
	}

	cycleCmd.AddCommand(&cobra.Command{
		Use:   "create PLAN_ID",
		Short: "Create the plan's next cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycle, err := g.client().CreateCycle(cmd.Context(), args[0], monitoring.CycleInput{})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cycle)
		},
	})

	cycleCmd.AddCommand(&cobra.Command{
		Use:   "show CYCLE_ID",
		Short: "Show a cycle and its status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycle, err := g.client().GetCycle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cycle)
		},
	})

	var comment, due string
	transitionCmd := &cobra.Command{
		Use:   "transition CYCLE_ID ACTION",
		Short: "Apply a lifecycle action (start, submit, request-approval, approve, reject, void, complete, cancel, postpone)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.TransitionOptions{Comment: comment}
			if due != "" {
				d, err := time.Parse(time.DateOnly, due)
				if err != nil {
					return fmt.Errorf("--due must be YYYY-MM-DD: %w", err)
				}
				opts.DueDate = &d
			}
			cycle, err := g.client().Transition(cmd.Context(), args[0], domain.CycleAction(args[1]), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", cycle.ID, cycle.Status)
			return nil
		},
	}
	transitionCmd.Flags().StringVar(&comment, "comment", "", "comment, required for reject")
	transitionCmd.Flags().StringVar(&due, "due", "", "new due date for postpone (YYYY-MM-DD)")
	cycleCmd.AddCommand(transitionCmd)

	return cycleCmd
}

func resultCommand(g *globals) *cobra.Command {
	var value float64
	var inputs []string
	var narrative string

	cmd := &cobra.Command{
		Use:   "result CYCLE_ID METRIC_ID",
		Short: "Record a metric result, either --value or formula --input pairs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := monitoring.ResultInput{PlanMetricID: args[1], Narrative: narrative}
			if cmd.Flags().Changed("value") {
				in.Value = &value
			}
			parsed, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			in.Inputs = parsed

			res, err := g.client().RecordResult(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			if res.Value == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "recorded no value: %s\n", res.Outcome)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %g: %s\n", *res.Value, res.Outcome)
			return nil
		},
	}
	cmd.Flags().Float64Var(&value, "value", 0, "metric value")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "formula input as name=value (repeatable)")
	cmd.Flags().StringVar(&narrative, "narrative", "", "analyst narrative")
	return cmd
}

func trendCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "trend METRIC_ID",
		Short: "Show a metric's results across cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trend, err := g.client().Trend(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", trend.MetricName, trend.Layout.Pattern)
			for _, p := range trend.Points {
				v := "n/a"
				if p.Value != nil {
					v = strconv.FormatFloat(*p.Value, 'g', -1, 64)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.PeriodEnd.Format(time.DateOnly), v, p.Outcome)
			}
			return nil
		},
	}
}
