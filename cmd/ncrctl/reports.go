package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Project NCR reports",
}

var reportsSummaryCmd = &cobra.Command{
	Use:   "summary <projectID>",
	Short: "Show the project's NCR summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Total          int64            `json:"total"`
			ByStatus       map[string]int64 `json:"byStatus"`
			BySeverity     map[string]int64 `json:"bySeverity"`
			OpenMajor      int64            `json:"openMajor"`
			TotalRevisions int64            `json:"totalRevisions"`
			AvgOpenAgeDays float64          `json:"avgOpenAgeDays"`
			Reopened       int64            `json:"reopened"`
			BlockedLots    int64            `json:"blockedLots"`
		}
		path := fmt.Sprintf("%s/projects/%s/reports/ncr-summary", apiBase, args[0])
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to get summary: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Metric", "Value"}
		rows := [][]string{
			{"Total NCRs", fmt.Sprintf("%d", result.Total)},
			{"Open major", fmt.Sprintf("%d", result.OpenMajor)},
			{"Total revisions", fmt.Sprintf("%d", result.TotalRevisions)},
			{"Avg open age (days)", fmt.Sprintf("%.1f", result.AvgOpenAgeDays)},
			{"Reopened", fmt.Sprintf("%d", result.Reopened)},
			{"Blocked lots", fmt.Sprintf("%d", result.BlockedLots)},
		}
		for status, n := range result.ByStatus {
			rows = append(rows, []string{"Status " + status, fmt.Sprintf("%d", n)})
		}
		for severity, n := range result.BySeverity {
			rows = append(rows, []string{"Severity " + severity, fmt.Sprintf("%d", n)})
		}
		printTable(headers, rows)
		return nil
	},
}

func init() {
	reportsCmd.AddCommand(reportsSummaryCmd)
}
