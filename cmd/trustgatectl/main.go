// Command trustgatectl is a thin CLI wrapper around trustgated's admin HTTP
// surface, for operators reviewing and deciding pending approval requests
// from a terminal instead of a dashboard.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string
	root := &cobra.Command{
		Use:   "trustgatectl",
		Short: "Operator CLI for the trust-enforcement gateway's admin API",
	}
	root.PersistentFlags().StringVar(&addr, "addr", envOr("TRUSTGATED_ADDR", "http://localhost:8080"), "trustgated base URL")

	root.AddCommand(
		newPendingCmd(&addr),
		newApproveCmd(&addr),
		newRejectCmd(&addr),
		newStatsCmd(&addr),
	)
	return root
}

func newPendingCmd(addr *string) *cobra.Command {
	var domain, workflow, runID string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending approval requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := make([]string, 0, 3)
			if domain != "" {
				q = append(q, "domain="+domain)
			}
			if workflow != "" {
				q = append(q, "workflow="+workflow)
			}
			if runID != "" {
				q = append(q, "run_id="+runID)
			}
			url := *addr + "/approvals/pending"
			if len(q) > 0 {
				url += "?" + strings.Join(q, "&")
			}
			return getAndPrint(url)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "filter by domain")
	cmd.Flags().StringVar(&workflow, "workflow", "", "filter by workflow")
	cmd.Flags().StringVar(&runID, "run-id", "", "filter by run id")
	return cmd
}

func newApproveCmd(addr *string) *cobra.Command {
	return newDecideCmd(addr, "approve")
}

func newRejectCmd(addr *string) *cobra.Command {
	return newDecideCmd(addr, "reject")
}

func newDecideCmd(addr *string, action string) *cobra.Command {
	var decidedBy, notes string
	cmd := &cobra.Command{
		Use:   action + " <request-id>",
		Short: "Record a human " + action + " decision on a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if decidedBy == "" {
				return fmt.Errorf("--decided-by is required")
			}
			body, err := json.Marshal(map[string]string{"decided_by": decidedBy, "notes": notes})
			if err != nil {
				return err
			}
			url := fmt.Sprintf("%s/approvals/%s/%s", *addr, args[0], action)
			resp, err := http.Post(url, "application/json", strings.NewReader(string(body)))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
	cmd.Flags().StringVar(&decidedBy, "decided-by", "", "identity of the human reviewer (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "optional decision notes")
	return cmd
}

func newStatsCmd(addr *string) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show audit event statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := *addr + "/audit/stats"
			if runID != "" {
				url += "?run_id=" + runID
			}
			return getAndPrint(url)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "scope stats to one run")
	return cmd
}

func getAndPrint(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("trustgated: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
