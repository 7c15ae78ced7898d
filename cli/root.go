package cli

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.temporal.io/sdk/client"

	"github.com/imranansari/apigee-deploy-wf/config"
	"github.com/imranansari/apigee-deploy-wf/deployment"
	githubClient "github.com/imranansari/apigee-deploy-wf/github"
	"github.com/imranansari/apigee-deploy-wf/logging"
	"github.com/imranansari/apigee-deploy-wf/secrets"
)

// Config keys, also read from GITHUB_USERNAME and GITHUB_TOKEN
const (
	usernameKey = "github_username"
	tokenKey    = "github_token"
)

// app carries the flags and dependencies shared by all commands
type app struct {
	cfgFile   string
	tokenFile string
	logLevel  string
	viper     *viper.Viper

	loadConfig func() (*config.Config, error)
	newGitHub  func(cfg *config.Config) deployment.GitHubService
	newRunner  func(cfg *config.Config) (deployment.Runner, func(), error)
}

func newApp() *app {
	return &app{
		viper:      viper.New(),
		loadConfig: config.Load,
		newGitHub:  defaultGitHub,
		newRunner:  defaultRunner,
	}
}

func defaultGitHub(cfg *config.Config) deployment.GitHubService {
	factory := githubClient.NewClientFactory(cfg.GitHub, cfg.Secrets.GitHubPrivateKey, logging.GitHubLogger())
	return githubClient.NewService(factory, logging.GitHubLogger())
}

func defaultRunner(cfg *config.Config) (deployment.Runner, func(), error) {
	if cfg.Deploy.Mode != config.ModeTemporal {
		runner, err := deployment.NewRunner(cfg, nil, logging.RunnerLogger(cfg.Deploy.Mode))
		return runner, func() {}, err
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}
	runner, err := deployment.NewRunner(cfg, temporalClient, logging.RunnerLogger(cfg.Deploy.Mode))
	if err != nil {
		temporalClient.Close()
		return nil, nil, err
	}
	return runner, temporalClient.Close, nil
}

// Execute runs the apigee-deploy command line
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the apigee-deploy command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apigee-deploy",
		Short: "Deploy Apigee API proxies from GitHub repositories",
		Long: `
apigee-deploy drives the same deployment workflow as the deployment form:

1. authenticates with GitHub using a personal access token
2. lists repositories and branches holding proxy bundles
3. deploys a proxy to an Apigee environment and optionally opens a pull request
	`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.InitLoggerTo(cmd.ErrOrStderr(), a.logLevel, "console")
			return a.initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.apigee-deploy.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.tokenFile, "token-file", "", "file holding the GitHub personal access token")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level written to stderr")
	rootCmd.PersistentFlags().String("username", "", "GitHub username")
	_ = a.viper.BindPFlag(usernameKey, rootCmd.PersistentFlags().Lookup("username"))

	rootCmd.AddCommand(
		newWhoamiCommand(a),
		newReposCommand(a),
		newBranchesCommand(a),
		newPRCommand(a),
		newDeployCommand(a),
		newSimulateCommand(a),
		newAppInstallationsCommand(a),
	)
	return rootCmd
}

func (a *app) initConfig(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.viper.SetConfigFile(a.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		a.viper.AddConfigPath(home)
		a.viper.SetConfigName(".apigee-deploy")
	}

	_ = a.viper.BindEnv(usernameKey, "GITHUB_USERNAME")
	_ = a.viper.BindEnv(tokenKey, "GITHUB_TOKEN")

	if err := a.viper.ReadInConfig(); err == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", a.viper.ConfigFileUsed())
	} else if a.cfgFile != "" {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// credentials returns the GitHub username and token from flags, config file or environment
func (a *app) credentials() (string, string, error) {
	username := a.viper.GetString(usernameKey)

	token := a.viper.GetString(tokenKey)
	if a.tokenFile != "" {
		var err error
		if token, err = secrets.LoadToken(a.tokenFile); err != nil {
			return "", "", fmt.Errorf("failed to read token file: %w", err)
		}
	}

	if username == "" || token == "" {
		return "", "", fmt.Errorf("GITHUB_USERNAME and GITHUB_TOKEN (or --token-file) are required: %w", deployment.ErrCredentialsMissing)
	}
	return username, token, nil
}

// github loads configuration and returns the GitHub service with the caller's token
func (a *app) github() (deployment.GitHubService, string, string, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, "", "", err
	}
	username, token, err := a.credentials()
	if err != nil {
		return nil, "", "", err
	}
	return a.newGitHub(cfg), username, token, nil
}
