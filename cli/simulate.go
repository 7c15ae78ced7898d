package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imranansari/apigee-deploy-wf/deployment"
	"github.com/imranansari/apigee-deploy-wf/logging"
)

func newSimulateCommand(a *app) *cobra.Command {
	form := deployment.DefaultForm()

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated deployment without contacting the deployment backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := form.Validate(false); err != nil {
				return err
			}

			client := deployment.NewDeployAPIClient(cfg.Deploy, logging.RunnerLogger("simulate"))
			resp, err := client.Simulate(cmd.Context(), form.Config(""))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&form.ProxyName, "proxy", "", "Name of the API proxy")
	_ = cmd.MarkFlagRequired("proxy")
	cmd.Flags().StringVar(&form.EnvironmentGroup, "group", form.EnvironmentGroup, "Environment group")
	cmd.Flags().StringVar(&form.EnvironmentType, "type", form.EnvironmentType, "Environment type")
	cmd.Flags().StringVar(&form.ProxyDirectory, "dir", form.ProxyDirectory, "Directory holding the proxy bundle")
	return cmd
}
