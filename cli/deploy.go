package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imranansari/apigee-deploy-wf/config"
	"github.com/imranansari/apigee-deploy-wf/deployment"
	"github.com/imranansari/apigee-deploy-wf/logging"
)

func newDeployCommand(a *app) *cobra.Command {
	form := deployment.DefaultForm()

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an Apigee proxy, printing the deployment log as it runs",
		Example: `apigee-deploy deploy --proxy=orders-v1 --group=wpay --type=test
apigee-deploy deploy --proxy=orders-v1 --repo=octocat/proxies --branch=feature/orders --create-pr`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			runner, closeRunner, err := a.newRunner(cfg)
			if err != nil {
				return err
			}
			defer closeRunner()

			opts := deployment.Options{
				Runner: runner,
				Logger: logging.SessionLogger("cli"),
			}
			if cfg.App.GitHubIntegration {
				opts.GitHub = a.newGitHub(cfg)
			}
			session := deployment.NewSession("cli", opts)

			updates, unsubscribe := session.Subscribe()
			printed := make(chan struct{})
			go func() {
				defer close(printed)
				printLogs(cmd.OutOrStdout(), updates)
			}()

			err = a.runDeployment(cmd, session, form)
			unsubscribe()
			<-printed
			return err
		},
	}

	cmd.Flags().StringVar(&form.ProxyName, "proxy", "", "Name of the API proxy")
	_ = cmd.MarkFlagRequired("proxy")
	cmd.Flags().StringVar(&form.EnvironmentGroup, "group", form.EnvironmentGroup,
		"Environment group ("+strings.Join(config.EnvironmentGroups(), ", ")+")")
	cmd.Flags().StringVar(&form.EnvironmentType, "type", form.EnvironmentType,
		"Environment type ("+strings.Join(config.EnvironmentTypes(), ", ")+")")
	cmd.Flags().StringVar(&form.ProxyDirectory, "dir", form.ProxyDirectory, "Directory holding the proxy bundle")
	cmd.Flags().StringVar(&form.Repository, "repo", "", "Repository holding the proxy, in owner/name form")
	cmd.Flags().StringVar(&form.Branch, "branch", "", "Branch to deploy from")
	cmd.Flags().BoolVar(&form.CreatePR, "create-pr", false, "Open a pull request once the deployment succeeds")
	cmd.Flags().StringVar(&form.CommitMessage, "message", "", "Pull request description")
	return cmd
}

func (a *app) runDeployment(cmd *cobra.Command, session *deployment.Session, form deployment.FormInput) error {
	ctx := cmd.Context()

	if session.GitHubEnabled() {
		username, token, err := a.credentials()
		if err != nil {
			return err
		}
		if err := session.ValidateGitHub(ctx, username, token); err != nil {
			return err
		}
		if form.Repository != "" {
			if err := session.SelectRepository(ctx, form.Repository); err != nil {
				return err
			}
			if form.Branch != "" {
				if err := session.SelectBranch(form.Branch); err != nil {
					return err
				}
			}
		}
	}

	return session.Deploy(ctx, form)
}

// printLogs writes log entries as they are appended until updates is closed
func printLogs(w io.Writer, updates <-chan deployment.Snapshot) {
	printed := 0
	for snapshot := range updates {
		logs := snapshot.Deployment.Logs
		for ; printed < len(logs); printed++ {
			entry := logs[printed]
			fmt.Fprintf(w, "[%s] %-7s %s\n", entry.Timestamp.Format("15:04:05"), entry.Severity, entry.Message)
		}
	}
}
