package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stridehq/stride/internal/apply"
	"github.com/stridehq/stride/internal/patch"
	"golang.org/x/term"
)

func newApplyCmd() *cobra.Command {
	var (
		configPath    string
		proposalPath  string
		indexes       string
		clarification string
	)

	cmd := &cobra.Command{
		Use:   "apply <plan-id>",
		Short: "Apply a generated proposal to a plan",
		Long: `Verifies a proposal produced by "stride generate" and commits it in one
transaction. Reads the proposal JSON from --proposal, or stdin when the
flag is omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, configPath, args[0], proposalPath, indexes, clarification)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "stride.yaml", "path to Stride config file")
	cmd.Flags().StringVarP(&proposalPath, "proposal", "p", "", "path to the proposal JSON (default: stdin)")
	cmd.Flags().StringVar(&indexes, "changes", "", "comma-separated change indexes to apply (default: all)")
	cmd.Flags().StringVar(&clarification, "answer", "", "answer to the proposal's clarification question")
	return cmd
}

func runApply(cmd *cobra.Command, configPath, planID, proposalPath, indexes, clarification string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	signer, err := buildSigner(cfg)
	if err != nil {
		return err
	}

	raw, err := readProposal(proposalPath)
	if err != nil {
		return err
	}

	var p patch.Proposal
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("parse proposal: %w", err)
	}

	opts := apply.Options{ClarificationResponse: clarification}
	if indexes != "" {
		opts.ChangeIndexes, err = parseIndexes(indexes)
		if err != nil {
			return err
		}
	}

	// Proposals that ask a follow-up question need an answer before they
	// can be committed. Prompt when attached to a terminal; otherwise the
	// caller must pass --answer.
	if p.RequiresClarification && opts.ClarificationResponse == "" {
		opts.ClarificationResponse, err = promptClarification(cmd, p.ClarificationPrompt)
		if err != nil {
			return err
		}
	}

	applier := &apply.Applier{
		DB:     gormDB,
		Signer: signer,
		Log:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}

	res, err := applier.Apply(planID, &p, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Applied %d change(s)\n", res.AppliedCount)
	if res.ExtendedWeeks > 0 {
		fmt.Fprintf(out, "Plan extended by %d week(s)\n", res.ExtendedWeeks)
	}
	fmt.Fprintln(out, res.Summary)
	return nil
}

func readProposal(path string) ([]byte, error) {
	if path == "" {
		raw, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return nil, fmt.Errorf("read proposal from stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proposal %s: %w", path, err)
	}
	return raw, nil
}

func promptClarification(cmd *cobra.Command, prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("proposal requires clarification; re-run with --answer")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "The coach needs an answer before applying:\n  %s\n> ", prompt)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return "", fmt.Errorf("no clarification answer given")
	}
	answer := strings.TrimSpace(scanner.Text())
	if answer == "" {
		return "", fmt.Errorf("no clarification answer given")
	}
	return answer, nil
}

func parseIndexes(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	idxs := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse change index %q: %w", part, err)
		}
		idxs = append(idxs, n)
	}
	return idxs, nil
}
