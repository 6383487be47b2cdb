// Package main is the ohhell entrypoint: the game server and a console client.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"ohhell-server/internal/config"
	"ohhell-server/internal/log"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CLI command definitions.
var (
	logger logrus.FieldLogger = logrus.StandardLogger()

	rootCmd = &cobra.Command{
		Use:           "ohhell",
		Short:         "Networked Oh Hell card game.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Hosts a game table.",
		Args:  cobra.NoArgs,
		RunE:  runCmd(runServer),
	}

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "Joins a game table from the console.",
		Args:  cobra.NoArgs,
		RunE:  runCmd(runClient),
	}
)

type runner func(ctx context.Context, cmd *cobra.Command, c config.Config) error

// runCmd loads the configuration, applies flag overrides and runs fn until
// it returns or the process is interrupted.
func runCmd(fn runner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := loadConfig(cmd.Flags())
		if err != nil {
			return errors.Wrap(err, "load config failed")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		log.SetLogger(c.LogLevel)
		return errors.Wrapf(fn(ctx, cmd, c), "run %s failed", cmd.Name())
	}
}

// loadConfig reads the environment and lets explicitly set flags win.
func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	var files []string
	if envFile, _ := flags.GetString("env-file"); envFile != "" {
		files = append(files, envFile)
	}
	c, err := config.Load(files...)
	if err != nil {
		return config.Config{}, err
	}

	var ferr error
	str := func(name string, dst *string) {
		if flags.Changed(name) && ferr == nil {
			*dst, ferr = flags.GetString(name)
		}
	}
	str("addr", &c.Addr)
	str("password", &c.Password)
	str("log-level", &c.LogLevel)
	str("bidding", &c.Bidding)
	str("http-addr", &c.HTTPAddr)
	str("nats-url", &c.NATSURL)
	if flags.Changed("players") && ferr == nil {
		c.Players, ferr = flags.GetInt("players")
	}
	if flags.Changed("manual-approval") && ferr == nil {
		c.ManualApproval, ferr = flags.GetBool("manual-approval")
	}
	if flags.Changed("liveness-timeout") && ferr == nil {
		c.LivenessTimeout, ferr = flags.GetDuration("liveness-timeout")
	}
	if ferr != nil {
		return config.Config{}, errors.Wrap(ferr, "read flags failed")
	}
	return c, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("env-file", "", "env file to load instead of .env")
	pf.String("addr", ":5050", "game address to listen on or dial")
	pf.String("password", "", "16 hex character table password")
	pf.Duration("liveness-timeout", 10*time.Second, "time without traffic before a connection counts as broken")
	pf.String("log-level", "info", "trace, debug, info, warn or error")

	sf := serverCmd.Flags()
	sf.Int("players", 4, "number of seats (2-6)")
	sf.String("bidding", "classic", "classic or random")
	sf.Bool("manual-approval", false, "ask on the console before admitting each connection")
	sf.String("http-addr", ":8080", "HTTP status and websocket address, empty to disable")
	sf.String("nats-url", "", "NATS server for lifecycle events, empty to disable")
	sf.Bool("generate-password", false, "print a fresh password and use it")

	cf := clientCmd.Flags()
	cf.String("name", "", "player name")
	if err := clientCmd.MarkFlagRequired("name"); err != nil {
		logger.Fatalln(err)
	}

	rootCmd.AddCommand(
		serverCmd,
		clientCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
