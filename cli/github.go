package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	githubClient "github.com/imranansari/apigee-deploy-wf/github"
)

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Validate the GitHub credentials and show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gh, username, token, err := a.github()
			if err != nil {
				return err
			}

			user, err := gh.ValidateCredentials(cmd.Context(), username, token)
			if err != nil {
				return err
			}

			if user.Name != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Login, user.Name)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), user.Login)
			}
			return nil
		},
	}
}

func newReposCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List repositories of the authenticated user, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gh, _, token, err := a.github()
			if err != nil {
				return err
			}

			repos, err := gh.ListRepositories(cmd.Context(), token)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REPOSITORY\tDEFAULT BRANCH\tUPDATED")
			for _, r := range repos {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.FullName, r.DefaultBranch, r.UpdatedAt.Format(time.DateOnly))
			}
			return w.Flush()
		},
	}
}

func newBranchesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "branches <owner/repo>",
		Short:   "List branches of a repository",
		Example: `apigee-deploy branches octocat/proxies`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gh, _, token, err := a.github()
			if err != nil {
				return err
			}

			branches, err := gh.ListBranches(cmd.Context(), token, args[0])
			if err != nil {
				return err
			}

			for _, b := range branches {
				if b.Protected {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (protected)\n", b.Name)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), b.Name)
				}
			}
			return nil
		},
	}
}

func newPRCommand(a *app) *cobra.Command {
	prCmd := &cobra.Command{
		Use:     "pr",
		Aliases: []string{"pull-request"},
		Short:   "Open or inspect pull requests",
	}
	prCmd.AddCommand(newPRCreateCommand(a), newPRStatusCommand(a))
	return prCmd
}

func newPRCreateCommand(a *app) *cobra.Command {
	var (
		repo string
		opts githubClient.PROptions
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Open a pull request",
		Example: `apigee-deploy pr create --repo=octocat/proxies --head=feature/orders --title="Deploy orders-v1"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gh, _, token, err := a.github()
			if err != nil {
				return err
			}

			pr, err := gh.CreatePullRequest(cmd.Context(), token, repo, opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pull request #%d opened: %s\n", pr.Number, pr.HTMLURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Repository in owner/name form")
	_ = cmd.MarkFlagRequired("repo")
	cmd.Flags().StringVar(&opts.Head, "head", "", "Branch holding the changes")
	_ = cmd.MarkFlagRequired("head")
	cmd.Flags().StringVar(&opts.Base, "base", "main", "Branch to merge into")
	cmd.Flags().StringVar(&opts.Title, "title", "", "Pull request title")
	_ = cmd.MarkFlagRequired("title")
	cmd.Flags().StringVar(&opts.Description, "body", "", "Pull request description")
	cmd.Flags().BoolVar(&opts.Draft, "draft", false, "Open as a draft")
	cmd.Flags().BoolVar(&opts.MaintainerCanModify, "maintainer-can-modify", true, "Allow maintainers to push to the head branch")
	return cmd
}

func newPRStatusCommand(a *app) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:     "status <number>",
		Short:   "Show the state of a pull request",
		Example: `apigee-deploy pr status 7 --repo=octocat/proxies`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil || number <= 0 {
				return fmt.Errorf("invalid pull request number %q", args[0])
			}

			gh, _, token, err := a.github()
			if err != nil {
				return err
			}

			pr, err := gh.GetPRStatus(cmd.Context(), token, repo, number)
			if err != nil {
				return err
			}

			state := pr.State
			switch {
			case pr.Merged:
				state = "merged"
			case pr.Draft && state == "open":
				state = "draft"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s [%s] %s <- %s\n%s\n",
				pr.Number, pr.Title, state, pr.Base.Ref, pr.Head.Ref, pr.HTMLURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Repository in owner/name form")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}
