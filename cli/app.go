package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	githubClient "github.com/imranansari/apigee-deploy-wf/github"
	"github.com/imranansari/apigee-deploy-wf/logging"
)

func newAppInstallationsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "app-installations",
		Short: "List the accounts the GitHub App used for GitHub Deployments is installed on",
		Long: `
Checks the GitHub App configured with GITHUB_APP_ID and GITHUB_PRIVATE_KEY_FILE.
The worker records deployments only for repositories owned by these accounts.
	`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			factory := githubClient.NewClientFactory(cfg.GitHub, cfg.Secrets.GitHubPrivateKey, logging.GitHubLogger())
			installations, err := factory.Installations(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "GitHub App %d\n", cfg.GitHub.AppID)
			if len(installations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No installations found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INSTALLATION\tACCOUNT\tTYPE\tREPOSITORIES")
			for _, inst := range installations {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", inst.ID, inst.Account, inst.AccountType, inst.RepositorySelection)
			}
			return w.Flush()
		},
	}
}
