package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/stridehq/stride/internal/advisor"
	"github.com/stridehq/stride/internal/coach"
	"github.com/stridehq/stride/internal/config"
	"github.com/stridehq/stride/internal/plan"
	"github.com/stridehq/stride/internal/token"
)

func newGenerateCmd() *cobra.Command {
	var (
		configPath string
		message    string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "generate <plan-id>",
		Short: "Generate a proposal from a coaching request",
		Long: `Sends the plan and your free-text request to the advisor and prints the
resulting signed proposal. Save the proposal JSON and feed it to
"stride apply" to commit it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, configPath, args[0], message, outPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "stride.yaml", "path to Stride config file")
	cmd.Flags().StringVarP(&message, "message", "m", "", "coaching request, e.g. \"move my long run to Sunday\" (required)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the proposal JSON to this file instead of stdout")
	cmd.MarkFlagRequired("message")
	return cmd
}

func runGenerate(cmd *cobra.Command, configPath, planID, message, outPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	gen, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	snap, err := plan.Load(gormDB, planID)
	if err != nil {
		return err
	}

	res, err := gen.Generate(cmd.Context(), snap, message)
	if err != nil {
		return err
	}
	p := res.Proposal

	fmt.Fprintf(out, "Coach: %s\n", p.CoachReply)
	fmt.Fprintf(out, "Summary: %s\n", p.Summary)
	fmt.Fprintf(out, "Changes: %d  Confidence: %s  Risk score: %.1f\n", len(p.Changes), p.Confidence, res.Report.Score)
	for _, f := range p.RiskFlags {
		fmt.Fprintf(out, "  ! %s\n", f)
	}
	if p.RequiresClarification {
		fmt.Fprintf(out, "Clarification needed: %s\n", p.ClarificationPrompt)
	}

	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode proposal: %w", err)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, raw, 0644); err != nil {
			return fmt.Errorf("write proposal to %s: %w", outPath, err)
		}
		fmt.Fprintf(out, "\nProposal written to %s\n", outPath)
		return nil
	}

	fmt.Fprintf(out, "\n%s\n", raw)
	return nil
}

func buildSigner(cfg *config.Config) (*token.Signer, error) {
	secret, err := cfg.TokenSecret()
	if err != nil {
		return nil, err
	}
	return token.NewSigner(secret, time.Duration(cfg.Token.TTLHours)*time.Hour), nil
}

func buildGenerator(cfg *config.Config) (*coach.Generator, error) {
	signer, err := buildSigner(cfg)
	if err != nil {
		return nil, err
	}

	apiKey, err := cfg.AdvisorAPIKey()
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return &coach.Generator{
		Advisor: advisor.New(apiKey, cfg.Advisor.Model, cfg.Advisor.BaseURL, log),
		Signer:  signer,
		Log:     log,
	}, nil
}
