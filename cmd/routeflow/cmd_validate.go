package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drblury/routeflow/internal/policy"
)

var (
	validatePaths    []string
	validateEmbedded bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [path...]",
	Short: "Parse policy documents and report what they define",
	Long: `Parses every policy document found at the given paths. Paths may be files
or directories; directories contribute their *.yaml, *.yml and *.json files.

Policy names must be unique across all documents. The command exits non-zero
on the first document that fails to compile.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringSliceVarP(&validatePaths, "policies", "p", nil, "Policy files or directories")
	validateCmd.Flags().BoolVar(&validateEmbedded, "embedded", false, "Include the built-in default policies")
}

func runValidate(cmd *cobra.Command, args []string) error {
	sources := policy.Sources{
		Embedded: validateEmbedded,
		Paths:    append(append([]string(nil), validatePaths...), args...),
	}
	if !sources.Embedded && len(sources.Paths) == 0 {
		return errors.New("no policy sources given: pass --policies or --embedded")
	}

	policies, err := sources.Load()
	if err != nil {
		return fmt.Errorf("validate policies: %w", err)
	}

	out := cmd.OutOrStdout()
	total := 0
	for _, p := range policies {
		fmt.Fprintf(out, "%-32s %d rules\n", p.Name(), p.Len())
		total += p.Len()
	}
	fmt.Fprintf(out, "OK: %d policies, %d rules\n", len(policies), total)

	logger.Debug("policies validated",
		zap.Int("policies", len(policies)),
		zap.Int("rules", total),
		zap.Strings("paths", sources.Paths))
	return nil
}
