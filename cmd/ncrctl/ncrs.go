package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const apiBase = "/api/v1"

// ncrView mirrors the fields of the server's resolved NCR payload that the
// table output needs.
type ncrView struct {
	ID       string `json:"id"`
	Number   string `json:"number"`
	Status   string `json:"status"`
	Severity string `json:"severity"`

	Description       string `json:"description"`
	ResponsibleUserID string `json:"responsibleUserId"`
	RevisionCount     int    `json:"revisionCount"`
	CreatedAt         string `json:"createdAt"`
}

type resolvedView struct {
	NCR ncrView `json:"ncr"`
}

var ncrsCmd = &cobra.Command{
	Use:   "ncrs",
	Short: "Manage non-conformance reports",
}

var ncrsListCmd = &cobra.Command{
	Use:   "list <projectID>",
	Short: "List a project's NCRs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID := args[0]
		client := newClient()

		path := fmt.Sprintf("%s/projects/%s/ncrs?pageSize=%d", apiBase, projectID, listPageSize)
		if listStatus != "" {
			path += "&status=" + listStatus
		}
		if listSeverity != "" {
			path += "&severity=" + listSeverity
		}

		var result struct {
			NCRs      []ncrView `json:"ncrs"`
			TotalSize int       `json:"totalSize"`
		}
		if err := client.getJSON(path, &result); err != nil {
			return fmt.Errorf("failed to list ncrs: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Number", "Status", "Severity", "Responsible", "Revisions", "Description"}
		rows := make([][]string, 0, len(result.NCRs))
		for _, n := range result.NCRs {
			responsible := n.ResponsibleUserID
			if responsible == "" {
				responsible = "-"
			}
			rows = append(rows, []string{
				n.Number, n.Status, n.Severity, responsible,
				fmt.Sprintf("%d", n.RevisionCount), truncate(n.Description, 50),
			})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

var ncrsGetCmd = &cobra.Command{
	Use:   "get <ncrID>",
	Short: "Get an NCR with its lots, evidence and allowed actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		var result map[string]any
		if err := client.getJSON(fmt.Sprintf("%s/ncrs/%s", apiBase, args[0]), &result); err != nil {
			return fmt.Errorf("failed to get ncr: %w", err)
		}
		return printOutput(result)
	},
}

var (
	createSeverity    string
	createCategory    string
	createDescription string
	createResponsible string
	createDueDate     string
	createLots        []string
)

var ncrsCreateCmd = &cobra.Command{
	Use:   "create <projectID>",
	Short: "Raise a new NCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		body := map[string]any{
			"category":          createCategory,
			"severity":          createSeverity,
			"description":       createDescription,
			"responsibleUserId": createResponsible,
			"dueDate":           createDueDate,
			"lotIds":            createLots,
		}

		var result resolvedView
		if err := client.postJSON(fmt.Sprintf("%s/projects/%s/ncrs", apiBase, args[0]), body, &result); err != nil {
			return fmt.Errorf("failed to create ncr: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Printf("Created %s (%s)\n", result.NCR.Number, result.NCR.ID)
		return nil
	},
}

var (
	respondRootCauseCategory string
	respondRootCause         string
	respondProposedAction    string
)

var ncrsRespondCmd = &cobra.Command{
	Use:   "respond <ncrID>",
	Short: "Submit the investigation response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{
			"rootCauseCategory":    respondRootCauseCategory,
			"rootCauseDescription": respondRootCause,
			"proposedAction":       respondProposedAction,
		}
		return runTransition(args[0], "respond", body)
	},
}

var (
	reviewDecision string
	reviewComments string
)

var ncrsReviewCmd = &cobra.Command{
	Use:   "review <ncrID>",
	Short: "Review a submitted response (accept or request_revision)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{
			"decision": reviewDecision,
			"comments": reviewComments,
		}
		return runTransition(args[0], "review", body)
	},
}

var rectifyNotes string

var ncrsRectifyCmd = &cobra.Command{
	Use:   "rectify <ncrID>",
	Short: "Record rectification work and move to verification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(args[0], "rectify", map[string]string{"notes": rectifyNotes})
	},
}

var submitNotes string

var ncrsSubmitCmd = &cobra.Command{
	Use:   "submit <ncrID>",
	Short: "Submit for verification (requires attached evidence)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(args[0], "submit-verification", map[string]string{"notes": submitNotes})
	},
}

var rejectFeedback string

var ncrsRejectCmd = &cobra.Command{
	Use:   "reject <ncrID>",
	Short: "Reject a submitted rectification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(args[0], "reject-rectification", map[string]string{"feedback": rejectFeedback})
	},
}

var ncrsApproveCmd = &cobra.Command{
	Use:   "approve <ncrID>",
	Short: "Record QM closure approval on a major NCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(args[0], "qm-approve", map[string]string{})
	},
}

var (
	closeConcession    bool
	closeJustification string
	closeRisk          string
	closeLessons       string
)

var ncrsCloseCmd = &cobra.Command{
	Use:   "close <ncrID>",
	Short: "Verify and close an NCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"concession":               closeConcession,
			"concessionJustification":  closeJustification,
			"concessionRiskAssessment": closeRisk,
			"lessonsLearned":           closeLessons,
		}
		return runTransition(args[0], "close", body)
	},
}

var ncrsNotifyClientCmd = &cobra.Command{
	Use:   "notify-client <ncrID>",
	Short: "Dispatch the client notification package for a major NCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(args[0], "notify-client", map[string]string{})
	},
}

var reopenReason string

var ncrsReopenCmd = &cobra.Command{
	Use:   "reopen <ncrID>",
	Short: "Reopen a closed NCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(args[0], "reopen", map[string]string{"reason": reopenReason})
	},
}

var reassignTo string

var ncrsReassignCmd = &cobra.Command{
	Use:   "reassign <ncrID>",
	Short: "Change the responsible party",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(args[0], "reassign", map[string]string{"responsibleUserId": reassignTo})
	},
}

var ncrsHistoryCmd = &cobra.Command{
	Use:   "history <ncrID>",
	Short: "Show the audit trail for an NCR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		var result struct {
			Events []struct {
				Actor     string `json:"actor"`
				Action    string `json:"action"`
				Outcome   string `json:"outcome"`
				CreatedAt string `json:"createdAt"`
			} `json:"events"`
			TotalSize int `json:"totalSize"`
		}
		if err := client.getJSON(fmt.Sprintf("%s/ncrs/%s/history", apiBase, args[0]), &result); err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}

		headers := []string{"Action", "Actor", "Outcome", "Time"}
		rows := make([][]string, 0, len(result.Events))
		for _, e := range result.Events {
			rows = append(rows, []string{e.Action, e.Actor, e.Outcome, e.CreatedAt})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", result.TotalSize)
		return nil
	},
}

// runTransition posts a transition and prints the resulting NCR.
func runTransition(ncrID, action string, body any) error {
	client := newClient()

	var result resolvedView
	if err := client.postJSON(fmt.Sprintf("%s/ncrs/%s/%s", apiBase, ncrID, action), body, &result); err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(result)
	}
	fmt.Printf("%s is now %s\n", result.NCR.Number, result.NCR.Status)
	return nil
}

var (
	listStatus   string
	listSeverity string
	listPageSize int
)

func init() {
	ncrsListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	ncrsListCmd.Flags().StringVar(&listSeverity, "severity", "", "Filter by severity")
	ncrsListCmd.Flags().IntVar(&listPageSize, "page-size", 20, "Page size")

	ncrsCreateCmd.Flags().StringVar(&createCategory, "category", "", "Defect category")
	ncrsCreateCmd.Flags().StringVar(&createSeverity, "severity", "minor", "Severity (minor or major)")
	ncrsCreateCmd.Flags().StringVar(&createDescription, "description", "", "Defect description (required)")
	ncrsCreateCmd.Flags().StringVar(&createResponsible, "responsible", "", "Responsible user ID")
	ncrsCreateCmd.Flags().StringVar(&createDueDate, "due", "", "Due date (RFC3339)")
	ncrsCreateCmd.Flags().StringSliceVar(&createLots, "lot", nil, "Lot ID to link (repeatable)")
	_ = ncrsCreateCmd.MarkFlagRequired("description")

	ncrsRespondCmd.Flags().StringVar(&respondRootCauseCategory, "category", "", "Root cause category")
	ncrsRespondCmd.Flags().StringVar(&respondRootCause, "root-cause", "", "Root cause description")
	ncrsRespondCmd.Flags().StringVar(&respondProposedAction, "action", "", "Proposed corrective action")

	ncrsReviewCmd.Flags().StringVar(&reviewDecision, "decision", "", "accept or request_revision (required)")
	ncrsReviewCmd.Flags().StringVar(&reviewComments, "comments", "", "Review comments")
	_ = ncrsReviewCmd.MarkFlagRequired("decision")

	ncrsRectifyCmd.Flags().StringVar(&rectifyNotes, "notes", "", "Rectification notes")
	ncrsSubmitCmd.Flags().StringVar(&submitNotes, "notes", "", "Rectification notes")

	ncrsRejectCmd.Flags().StringVar(&rejectFeedback, "feedback", "", "Rejection feedback")

	ncrsCloseCmd.Flags().BoolVar(&closeConcession, "concession", false, "Close as accepted concession")
	ncrsCloseCmd.Flags().StringVar(&closeJustification, "justification", "", "Concession justification")
	ncrsCloseCmd.Flags().StringVar(&closeRisk, "risk-assessment", "", "Concession risk assessment")
	ncrsCloseCmd.Flags().StringVar(&closeLessons, "lessons", "", "Lessons learned")

	ncrsReopenCmd.Flags().StringVar(&reopenReason, "reason", "", "Reopen reason (required)")
	_ = ncrsReopenCmd.MarkFlagRequired("reason")

	ncrsReassignCmd.Flags().StringVar(&reassignTo, "to", "", "New responsible user ID (required)")
	_ = ncrsReassignCmd.MarkFlagRequired("to")

	ncrsCmd.AddCommand(ncrsListCmd)
	ncrsCmd.AddCommand(ncrsGetCmd)
	ncrsCmd.AddCommand(ncrsCreateCmd)
	ncrsCmd.AddCommand(ncrsRespondCmd)
	ncrsCmd.AddCommand(ncrsReviewCmd)
	ncrsCmd.AddCommand(ncrsRectifyCmd)
	ncrsCmd.AddCommand(ncrsSubmitCmd)
	ncrsCmd.AddCommand(ncrsRejectCmd)
	ncrsCmd.AddCommand(ncrsApproveCmd)
	ncrsCmd.AddCommand(ncrsCloseCmd)
	ncrsCmd.AddCommand(ncrsNotifyClientCmd)
	ncrsCmd.AddCommand(ncrsReopenCmd)
	ncrsCmd.AddCommand(ncrsReassignCmd)
	ncrsCmd.AddCommand(ncrsHistoryCmd)
}
