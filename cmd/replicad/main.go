package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cuemby/replicad/pkg/config"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// exitError carries a specific process exit status out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "replicad",
	Short: "replicad - replicated block storage daemon",
	Long: `replicad keeps local block devices replicated to a remote node.

Each configured resource is in one of the roles init, primary or
secondary. While a resource is primary, a dedicated worker process
serves its I/O and replicates it; the daemon supervises those workers
and answers administrative requests on a local control socket.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// globalOptions are the flags shared by every subcommand
type globalOptions struct {
	configPath string
	socketPath string
}

var global globalOptions

// AddFlags registers the shared flags on fs
func (o *globalOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "/etc/replicad/replicad.yaml", "configuration file")
	fs.StringVar(&o.socketPath, "socket", "", "control socket (default: control_socket from the configuration)")
}

// controlSocket resolves the control socket a client command talks to
func (o *globalOptions) controlSocket() string {
	if o.socketPath != "" {
		return o.socketPath
	}
	if cfg, err := config.Load(o.configPath); err == nil {
		return cfg.ControlSocket
	}
	return config.DefaultControlSocket
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"replicad version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	global.AddFlags(rootCmd.PersistentFlags())

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(roleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("replicad version %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Built: %s\n", BuildTime)
	},
}
