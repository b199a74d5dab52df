/*
	Copyright 2023 Markus Papenbrock
*/

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	migrateCmd "github.com/mpapenbr/zenride/pkg/cmd/migrate"
	routesCmd "github.com/mpapenbr/zenride/pkg/cmd/routes"
	simulateCmd "github.com/mpapenbr/zenride/pkg/cmd/simulate"
	statsCmd "github.com/mpapenbr/zenride/pkg/cmd/stats"
	"github.com/mpapenbr/zenride/pkg/config"
	"github.com/mpapenbr/zenride/pkg/routing"
	"github.com/mpapenbr/zenride/version"
)

const envPrefix = "ZENRIDE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "zenride",
	Short:   "Hazard aware routing and drive recording",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:funlen // flag definitions
func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.zenride.yml)")
	pf.StringVar(&config.LogLevel, "log-level", "info",
		"controls the log level (debug, info, warn, error, fatal)")
	pf.StringVar(&config.LogFormat, "log-format", "text",
		"controls the log output format (json, text)")
	pf.StringVar(&config.LogFilter, "log-filter", "",
		"zapfilter rules, e.g. \"*:routing.* debug:*\"")

	pf.StringVar(&config.Storage, "storage", "file",
		"storage backend (memory, file, nats, postgres, redis)")
	pf.StringVar(&config.StorageURL, "storage-url", "",
		"directory for the file backend (default is $HOME/.zenride)")
	pf.StringVar(&config.DB, "db",
		"postgresql://DB_USERNAME:DB_USER_PASSWORD@DB_HOST:5432/zenride",
		"Connection string for the database")
	pf.StringVar(&config.NatsURL, "nats-url", "nats://localhost:4222",
		"URL of the NATS server")
	pf.StringVar(&config.RedisAddr, "redis-addr", "localhost:6379",
		"address of the redis server")
	pf.StringVar(&config.WaitForServices, "wait-for-services", "15s",
		"Duration to wait for other services to be ready")

	pf.BoolVar(&config.EnableTelemetry, "enable-telemetry", false,
		"enables telemetry")
	pf.StringVar(&config.TelemetryEndpoint, "telemetry-endpoint", "localhost:4317",
		"endpoint that receives open telemetry data")

	pf.StringVar(&config.RoutingURL, "routing-url", routing.DefaultBaseURL,
		"base url of the routing service")
	pf.StringVar(&config.RoutingAPIKey, "routing-api-key", "",
		"api key for the routing service")
	pf.StringVar(&config.RoutingLanguage, "routing-language", "en-US",
		"language of route instructions")
	pf.StringVar(&config.RouteFile, "route-file", "",
		"use a recorded routing response instead of the routing service")
	pf.StringVar(&config.HazardFile, "hazard-file", "",
		"hazard feed (json or yaml)")
	pf.StringVar(&config.HazardSelector, "hazard-selector", "",
		"JSONPath selecting the hazard entries within the feed")
	pf.Float64Var(&config.FineAmount, "fine-amount", 100,
		"cost of a potential ticket")
	pf.BoolVar(&config.AvoidTolls, "avoid-tolls", false, "avoid toll roads")
	pf.BoolVar(&config.AvoidHighways, "avoid-highways", false, "avoid highways")
	pf.BoolVar(&config.AvoidHazards, "avoid-hazards", true,
		"also request routes avoiding all known hazards")

	// add commands here
	rootCmd.AddCommand(migrateCmd.NewMigrateCmd())
	rootCmd.AddCommand(routesCmd.NewRoutesCmd())
	rootCmd.AddCommand(simulateCmd.NewSimulateCmd())
	rootCmd.AddCommand(statsCmd.NewStatsCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".zenride" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".zenride")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --routing-api-key to ZENRIDE_ROUTING_API_KEY
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
