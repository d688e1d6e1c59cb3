package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
)

var openCmd = &cobra.Command{
	Use:   "open <image>",
	Short: "Parse an image and report which namespaces and extensions it carries",
	Long: `Parses the image, as every other subcommand does internally, and
prints a summary. Useful on its own as a quick structural-validity check:
a malformed image fails here with the same error the other subcommands
would raise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		img, err := voliso.Open(args[0], option.WithLogger(log))
		if err != nil {
			return fmt.Errorf("opening %q: %w", args[0], err)
		}
		defer img.Close()

		files, dirs := 0, 0
		_ = img.Walk(node.ISO9660, "/", func(path string, n *node.Node) error {
			if n.IsDirectory() {
				dirs++
			} else {
				files++
			}
			return nil
		})

		fmt.Printf("%s: %d files, %d directories\n", args[0], files, dirs)
		fmt.Printf("  joliet:     %v\n", img.HasNamespace(node.Joliet))
		fmt.Printf("  udf:        %v\n", img.HasNamespace(node.UDF))
		fmt.Printf("  bootable:   %v\n", img.HasElTorito())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
