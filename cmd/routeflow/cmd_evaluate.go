package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drblury/routeflow/internal/policy"
	"github.com/drblury/routeflow/internal/rules"
	"github.com/drblury/routeflow/internal/runtime/jsoncodec"
)

var (
	evaluatePaths      []string
	evaluatePolicies   []string
	evaluateSet        []string
	evaluateNoEmbedded bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Resolve a message context against one or more policies",
	Long: `Builds a message context from --set key=value pairs, evaluates the named
policies against it in order and prints the resolved context together with the
evaluation result as JSON.

Rule failures do not stop evaluation. They are listed under "errors" and make
the command exit non-zero after the output has been written.`,
	Example: `  routeflow evaluate --policy tracking-defaults --set tracking.ProcessName=
  routeflow evaluate -p ./policies --policy order-routing --set order.region=EU`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringSliceVarP(&evaluatePaths, "policies", "p", nil, "Policy files or directories")
	evaluateCmd.Flags().StringSliceVar(&evaluatePolicies, "policy", []string{policy.DefaultPolicyName}, "Policy names to evaluate, in order")
	evaluateCmd.Flags().StringArrayVar(&evaluateSet, "set", nil, "Initial context entry as key=value (repeatable)")
	evaluateCmd.Flags().BoolVar(&evaluateNoEmbedded, "no-embedded", false, "Do not load the built-in default policies")
}

type evaluateOutput struct {
	Context map[string]any `json:"context"`
	Policy  string         `json:"policy"`
	Fired   []string       `json:"fired"`
	Skipped []string       `json:"skipped"`
	Failed  []string       `json:"failed"`
	Changed bool           `json:"changed"`
	Errors  []string       `json:"errors,omitempty"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, err := parseAssignments(evaluateSet)
	if err != nil {
		return err
	}

	policies, err := policy.Sources{Embedded: !evaluateNoEmbedded, Paths: evaluatePaths}.Load()
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	chain, err := policy.NewRegistry(policies...).Chain(evaluatePolicies...)
	if err != nil {
		return err
	}

	result, evalErr := chain.Evaluate(ctx)
	out := evaluateOutput{
		Context: ctx.Snapshot(),
		Policy:  result.Policy,
		Fired:   nonNil(result.Fired),
		Skipped: nonNil(result.Skipped),
		Failed:  nonNil(result.Failed),
		Changed: result.Changed(),
	}
	if evalErr != nil {
		out.Errors = splitJoined(evalErr)
	}

	data, err := jsoncodec.MarshalIndent(out)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	logger.Debug("context evaluated",
		zap.Strings("policies", evaluatePolicies),
		zap.Int("fired", len(result.Fired)),
		zap.Int("failed", len(result.Failed)))

	if evalErr != nil {
		return fmt.Errorf("%d rule(s) failed", len(result.Failed))
	}
	return nil
}

func parseAssignments(pairs []string) (rules.MapContext, error) {
	ctx := rules.MapContext{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", pair)
		}
		ctx[key] = value
	}
	return ctx, nil
}

// splitJoined flattens errors.Join trees into one message per leaf error.
func splitJoined(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range joined.Unwrap() {
		out = append(out, splitJoined(e)...)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
