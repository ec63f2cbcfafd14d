package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/client"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	server string
	tenant string
	user   string
}

func (g *globals) client() *client.Client {
	return client.New(g.server, g.tenant, client.WithUser(g.user))
}

func rootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "kestrelctl",
		Short:         "Kestrel monitoring CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.server, "server", envOr("KESTREL_URL", "http://localhost:8080"), "Kestrel API base URL")
	rootCmd.PersistentFlags().StringVar(&g.tenant, "tenant", envOr("KESTREL_TENANT", "default"), "tenant ID sent as X-Tenant-ID")
	rootCmd.PersistentFlags().StringVar(&g.user, "user", os.Getenv("KESTREL_USER"), "user ID sent as X-User-ID")

	rootCmd.AddCommand(
		classifyCommand(g),
		validateCommand(),
		layoutCommand(),
		planCommand(g),
		cycleCommand(g),
		resultCommand(g),
		trendCommand(g),
	)
	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// thresholdFlags binds the four optional bounds of a ThresholdSet.
type thresholdFlags struct {
	yellowMin, yellowMax, redMin, redMax float64
}

func (f *thresholdFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.yellowMin, "yellow-min", 0, "yellow lower bound")
	cmd.Flags().Float64Var(&f.yellowMax, "yellow-max", 0, "yellow upper bound")
	cmd.Flags().Float64Var(&f.redMin, "red-min", 0, "red lower bound")
	cmd.Flags().Float64Var(&f.redMax, "red-max", 0, "red upper bound")
}

// set returns the bounds that were given on the command line; unset flags
// stay nil.
func (f *thresholdFlags) set(cmd *cobra.Command) domain.ThresholdSet {
	var t domain.ThresholdSet
	if cmd.Flags().Changed("yellow-min") {
		t.YellowMin = domain.Float(f.yellowMin)
	}
	if cmd.Flags().Changed("yellow-max") {
		t.YellowMax = domain.Float(f.yellowMax)
	}
	if cmd.Flags().Changed("red-min") {
		t.RedMin = domain.Float(f.redMin)
	}
	if cmd.Flags().Changed("red-max") {
		t.RedMax = domain.Float(f.redMax)
	}
	return t
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseInputs turns name=value pairs into formula inputs.
func parseInputs(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("input %q must be name=value", p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("input %q: invalid number", p)
		}
		out[strings.TrimSpace(name)] = v
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
