package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/enipcfg/internal/config"
	"github.com/tturner/enipcfg/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type globalFlags struct {
	configPath string
	verbose    bool
	debug      bool
	quiet      bool
	logFile    string
}

func main() {
	globals := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "enipcfg",
		Short: "EtherNet/IP device commissioning tool",
		Long: `enipcfg discovers EtherNet/IP devices on a local subnet, writes their
network configuration over CIP, and bootstraps factory-default devices
via BootP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&globals.configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&globals.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&globals.debug, "debug", false, "Debug output including wire dumps")
	rootCmd.PersistentFlags().BoolVarP(&globals.quiet, "quiet", "q", false, "Errors only")
	rootCmd.PersistentFlags().StringVar(&globals.logFile, "log-file", "", "Append log output to a file")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newAdaptersCmd(globals))
	rootCmd.AddCommand(newDiscoverCmd(globals))
	rootCmd.AddCommand(newWatchCmd(globals))
	rootCmd.AddCommand(newSetIPCmd(globals))
	rootCmd.AddCommand(newBootPCmd(globals))

	// Custom help command
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Root().Name())
		fmt.Fprintf(os.Stdout, "Available Commands:\n")
		for _, subCmd := range cmd.Root().Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(os.Stdout, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(os.Stdout, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Root().Name())
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger the subcommands share.
// The caller must Close the logger.
func setup(globals *globalFlags) (config.Config, *logging.Logger, error) {
	cfg := config.Default()
	if globals.configPath != "" {
		loaded, err := config.Load(globals.configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg = loaded
	}

	level := logging.LogLevelInfo
	switch {
	case globals.quiet:
		level = logging.LogLevelError
	case globals.debug:
		level = logging.LogLevelDebug
	case globals.verbose:
		level = logging.LogLevelVerbose
	}

	logFile := globals.logFile
	if logFile == "" {
		logFile = cfg.LogFile
	}

	log, err := logging.NewLogger(level, logFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}
