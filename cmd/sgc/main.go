// Command sgc drives competency-mapping processes from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/hylla/sgc/internal/domain"
	"github.com/hylla/sgc/internal/platform"
	"github.com/spf13/cobra"
)

// version is overridden at build time.
var version = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// cli carries the shared options and writers into every subcommand.
type cli struct {
	opts   globalOptions
	actor  actorOptions
	stdout io.Writer
	stderr io.Writer
}

// actorOptions identify who performs a workflow operation.
type actorOptions struct {
	id     string
	unitID string
	role   string
}

func (c *cli) currentActor() (domain.Actor, error) {
	actor, err := domain.NewActor(c.actor.id, c.actor.unitID, domain.Role(c.actor.role))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("--actor, --actor-unit and --role identify the operator: %w", err)
	}
	return actor, nil
}

// with opens the runtime for the running command and passes it to fn.
func (c *cli) with(cmd *cobra.Command, fn func(context.Context, *runtime) error) error {
	return withRuntime(cmd.Context(), &c.opts, c.stderr, cmd.CommandPath(), fn)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	devMode := version == "dev"
	if envDev, ok := parseBoolEnv("SGC_DEV_MODE"); ok {
		devMode = envDev
	}
	appName := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("SGC_APP_NAME")); envApp != "" {
		appName = envApp
	}

	root := &cobra.Command{
		Use:           "sgc",
		Short:         "Competency mapping workflow",
		Long:          "sgc runs mapping, revision and diagnosis processes over an organizational unit hierarchy.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.opts.appName, "app", appName, "application name for config/data path resolution")
	flags.BoolVar(&c.opts.devMode, "dev", devMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&c.actor.id, "actor", os.Getenv("SGC_ACTOR"), "id of the person performing the operation")
	flags.StringVar(&c.actor.unitID, "actor-unit", os.Getenv("SGC_ACTOR_UNIT"), "unit the actor is acting for")
	flags.StringVar(&c.actor.role, "role", os.Getenv("SGC_ACTOR_ROLE"), "actor profile: ADMIN, MANAGER, CHIEF or SERVER")

	root.AddCommand(
		c.pathsCommand(),
		c.seedCommand(),
		c.processCommand(),
		c.subprocessCommand(),
		c.activityCommand(),
		c.knowledgeCommand(),
		c.cadastroCommand(),
		c.mapCommand(),
		c.diagnosisCommand(),
		c.impactsCommand(),
		c.historyCommand(),
		c.outboxCommand(),
	)
	return root
}

func (c *cli) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and log paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := resolvePaths(&c.opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", c.opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", c.opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func (c *cli) seedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import units and effective maps from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var seed seedFile
			if err := readYAML(file, &seed); err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, rt *runtime) error {
				units, maps, err := applySeed(ctx, rt.svc, seed)
				if err != nil {
					return err
				}
				rt.logger.Info("seed imported", "units", units, "effective_maps", maps)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d units and %d effective maps\n", units, maps)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
