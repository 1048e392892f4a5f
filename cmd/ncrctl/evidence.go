package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Manage NCR evidence attachments",
}

var evidenceListCmd = &cobra.Command{
	Use:   "list <ncrID>",
	Short: "List an NCR's evidence grouped by type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		type item struct {
			ID       string `json:"id"`
			Document *struct {
				FileName  string `json:"FileName"`
				SizeBytes int64  `json:"SizeBytes"`
			} `json:"document"`
			CreatedAt string `json:"createdAt"`
		}
		var result struct {
			Photos       []item `json:"photos"`
			Certificates []item `json:"certificates"`
			Other        []item `json:"other"`
		}
		if err := client.getJSON(fmt.Sprintf("%s/ncrs/%s/evidence", apiBase, args[0]), &result); err != nil {
			return fmt.Errorf("failed to list evidence: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"ID", "Type", "File", "Added"}
		var rows [][]string
		appendRows := func(items []item, typ string) {
			for _, it := range items {
				file := "-"
				if it.Document != nil {
					file = it.Document.FileName
				}
				rows = append(rows, []string{it.ID, typ, file, it.CreatedAt})
			}
		}
		appendRows(result.Photos, "photo")
		appendRows(result.Certificates, "certificate")
		appendRows(result.Other, "other")
		printTable(headers, rows)
		return nil
	},
}

var (
	evidenceType string
	evidenceFile string
	evidenceSize int64
)

var evidenceAddCmd = &cobra.Command{
	Use:   "add <ncrID>",
	Short: "Attach evidence to an NCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{
			"evidenceType": evidenceType,
			"fileName":     evidenceFile,
			"sizeBytes":    evidenceSize,
		}
		var result map[string]any
		if err := client.postJSON(fmt.Sprintf("%s/ncrs/%s/evidence", apiBase, args[0]), body, &result); err != nil {
			return fmt.Errorf("failed to add evidence: %w", err)
		}
		return printOutput(result)
	},
}

var evidenceRmCmd = &cobra.Command{
	Use:   "rm <ncrID> <evidenceID>",
	Short: "Remove an evidence attachment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if err := client.delete(fmt.Sprintf("%s/ncrs/%s/evidence/%s", apiBase, args[0], args[1])); err != nil {
			return fmt.Errorf("failed to remove evidence: %w", err)
		}
		fmt.Println("Removed")
		return nil
	},
}

func init() {
	evidenceAddCmd.Flags().StringVar(&evidenceType, "type", "other", "Evidence type (photo, certificate, other)")
	evidenceAddCmd.Flags().StringVar(&evidenceFile, "file", "", "File name (required)")
	evidenceAddCmd.Flags().Int64Var(&evidenceSize, "size", 0, "File size in bytes")
	_ = evidenceAddCmd.MarkFlagRequired("file")

	evidenceCmd.AddCommand(evidenceListCmd)
	evidenceCmd.AddCommand(evidenceAddCmd)
	evidenceCmd.AddCommand(evidenceRmCmd)
}
