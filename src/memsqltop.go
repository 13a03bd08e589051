package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/5l1v3r1/memsql-top/src/args"
	"github.com/5l1v3r1/memsql-top/src/connection"
	"github.com/5l1v3r1/memsql-top/src/dashboard"
	"github.com/5l1v3r1/memsql-top/src/instance"
	"github.com/5l1v3r1/memsql-top/src/poller"
)

var (
	cfgFile   string
	arguments args.ArgumentList
	log       = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "memsql-top",
	Short: "A top-like view of query activity on a MemSQL cluster",
	Long: `memsql-top samples the distributed plan cache of a MemSQL aggregator at a
fixed interval and shows per-query execution rates, CPU utilization and
memory usage, busiest queries first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	f := rootCmd.Flags()
	f.StringVar(&arguments.Hostname, "host", "127.0.0.1", "aggregator host to connect to")
	f.StringVar(&arguments.Port, "port", "3306", "aggregator port")
	f.StringVarP(&arguments.Username, "user", "u", "root", "connection user name")
	f.StringVarP(&arguments.Password, "password", "p", "", "connection password")
	f.StringVar(&arguments.Database, "database", "information_schema", "database holding the plan cache summary")
	f.StringVar(&arguments.Timeout, "timeout", "30", "query timeout in seconds, 0 for none")
	f.DurationVarP(&arguments.UpdateInterval, "interval", "i", time.Second, "polling interval")
	f.IntVarP(&arguments.DisplayRows, "limit", "n", 20, "number of query rows to display")
	f.StringVar(&arguments.LogLevel, "log-level", "info", "logging level: debug, info, warn, error")

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default is $HOME/.memsql-top.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".memsql-top")
	}

	viper.SetEnvPrefix("MEMSQL_TOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", filepath.Clean(viper.ConfigFileUsed()))
	}
}

// applyConfig fills in flags the user did not set from config file or
// environment values.
func applyConfig(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(fl *pflag.Flag) {
		if !fl.Changed && viper.IsSet(fl.Name) {
			if err := fl.Value.Set(viper.GetString(fl.Name)); err != nil {
				log.Warnf("Ignoring config value for %s: %v", fl.Name, err)
			}
		}
	})
}

func run(cmd *cobra.Command, _ []string) error {
	applyConfig(cmd)

	if err := arguments.Validate(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(arguments.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.SetLevel(level)
	// Logs share the terminal with the live table; keep them on stderr.
	log.SetOutput(os.Stderr)

	con, err := connection.NewConnection(&arguments)
	if err != nil {
		return fmt.Errorf("connect to %s:%s: %w", arguments.Hostname, arguments.Port, err)
	}
	defer con.Close()

	if err := instance.CheckSupportedVersion(con); err != nil {
		return err
	}

	p, err := poller.New(con, log, arguments.UpdateInterval)
	if err != nil {
		return err
	}

	dash := dashboard.New(arguments.DisplayRows)
	dash.Attach(p)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.Run(ctx)
	return nil
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
