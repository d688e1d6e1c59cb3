// Package cmd provides the volctl command-line interface: a cobra-based
// tool for building, inspecting, and incrementally modifying optical disc
// images through the voliso package. Each subcommand opens or creates an
// image, performs one operation, and (for mutating commands) writes the
// result back out, so a disc can be assembled across several invocations
// the way a shell script driving mkisofs/genisoimage would.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/voliso/voliso/pkg/logging"
	"github.com/voliso/voliso/pkg/version"
)

var (
	verbose    bool
	configPath string
	cfg        = defaultConfig()
	log        *logging.Logger
)

// rootCmd is the base command when volctl is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "volctl",
	Short: "Build and inspect ISO9660/Joliet/Rock Ridge/El Torito/UDF images",
	Long: `volctl builds, inspects, and incrementally modifies optical disc
images conforming to ISO9660, Joliet, Rock Ridge, El Torito, and UDF.

Examples:
  volctl write --joliet --rock-ridge ./srcdir disc.iso
  volctl ls disc.iso /
  volctl add disc.iso ./README.txt /README.TXT
  volctl rm disc.iso /README.TXT
  volctl eltorito disc.iso ./boot.img
  volctl isohybrid disc.iso ./hybrid-mbr.bin

Use 'volctl [command] --help' for more information about a command.`,
	Version: version.Version(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			loaded, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("loading config %q: %w", configPath, err)
			}
			cfg = loaded
		}
		log = logging.NewLogger(logging.NewSimpleLogger(os.Stderr, verbosity(), true))
		return nil
	},
}

// resolveBool/resolveString let --config supply a default that an
// explicit flag still overrides, even though cobra parses flags before
// PersistentPreRunE loads the config file.
func resolveBool(c *cobra.Command, flag string, flagVal, cfgVal bool) bool {
	if c.Flags().Changed(flag) {
		return flagVal
	}
	return cfgVal
}

func resolveString(c *cobra.Command, flag string, flagVal, cfgVal string) string {
	if c.Flags().Changed(flag) || cfgVal == "" {
		return flagVal
	}
	return cfgVal
}

func verbosity() int {
	if verbose {
		return logging.LEVEL_DEBUG
	}
	return logging.LEVEL_INFO
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML file of default option values")
}
