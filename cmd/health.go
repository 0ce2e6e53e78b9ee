package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/output"
)

const msgBackendNotFound = "Backend server not found. Please start the backend server first."

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the review service is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return healthRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func healthRun(cmd *cobra.Command) error {
	c := newBackendClient()
	ui.VerboseLog("GET %s/health", c.BaseURL())
	if err := c.Health(commandContext(cmd)); err != nil {
		if errs.Is(err, errs.KindConnectivity) {
			return errs.Connectivity(msgBackendNotFound, err)
		}
		return err
	}
	ui.Success("Service is healthy at %s", output.Cyan(c.BaseURL()))
	return nil
}
