package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stridehq/stride/internal/coach"
	"github.com/stridehq/stride/internal/db"
	"github.com/stridehq/stride/internal/models"
	"github.com/stridehq/stride/internal/plan"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Training plan commands",
	}

	cmd.AddCommand(newPlanListCmd())
	cmd.AddCommand(newPlanShowCmd())
	cmd.AddCommand(newPlanSeedCmd())
	return cmd
}

func newPlanListCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List training plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanList(cmd, configPath, all)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "stride.yaml", "path to Stride config file")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include archived plans")
	return cmd
}

func runPlanList(cmd *cobra.Command, configPath string, all bool) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	q := gormDB.Order("race_date")
	if !all {
		q = q.Where("status <> ?", models.PlanArchived)
	}
	var plans []models.Plan
	if err := q.Find(&plans).Error; err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(plans) == 0 {
		fmt.Fprintln(out, "No plans found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRACE DATE\tWEEKS\tSTATUS")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Name, p.RaceDate.Format("2006-01-02"), p.WeekCount, p.Status)
	}
	return w.Flush()
}

func newPlanShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a plan week by week",
		Long:  "Prints the full plan with day and activity ids, marking closed days as [LOCKED].",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "stride.yaml", "path to Stride config file")
	return cmd
}

func runPlanShow(cmd *cobra.Command, configPath, planID string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	snap, err := plan.Load(gormDB, planID)
	if err != nil {
		return err
	}
	locks := plan.BuildLockState(snap)

	fmt.Fprint(cmd.OutOrStdout(), coach.RenderContext(snap, locks))
	return nil
}

func newPlanSeedCmd() *cobra.Command {
	var (
		configPath string
		name       string
		raceDate   string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo 12-week plan",
		Long:  "Seeds a realistic 12-week training plan for trying out generate and apply locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanSeed(cmd, configPath, name, raceDate)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "stride.yaml", "path to Stride config file")
	cmd.Flags().StringVar(&name, "name", "Demo Marathon Build", "plan name")
	cmd.Flags().StringVar(&raceDate, "race-date", "", "race date (YYYY-MM-DD, default 12 weeks from now)")
	return cmd
}

func runPlanSeed(cmd *cobra.Command, configPath, name, raceDate string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	race := time.Now().UTC().AddDate(0, 0, 12*7)
	if raceDate != "" {
		race, err = time.Parse("2006-01-02", raceDate)
		if err != nil {
			return fmt.Errorf("parse race date %q: %w", raceDate, err)
		}
	}

	p, err := db.SeedDemoPlan(gormDB, name, race)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Seeded plan %q (%d weeks, race %s)\n", p.Name, p.WeekCount, p.RaceDate.Format("2006-01-02"))
	fmt.Fprintf(out, "Plan ID: %s\n", p.ID)
	return nil
}
