package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
)

var (
	lsNamespace string
	lsRecursive bool
)

var lsCmd = &cobra.Command{
	Use:   "ls <image> [path]",
	Short: "List an image's directory contents",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(c *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 2 {
			path = args[1]
		}
		ns, err := parseNamespace(lsNamespace)
		if err != nil {
			return err
		}

		img, err := voliso.Open(args[0], option.WithLogger(log))
		if err != nil {
			return fmt.Errorf("opening %q: %w", args[0], err)
		}
		defer img.Close()

		width := terminalWidth()
		if lsRecursive {
			return img.Walk(ns, path, func(p string, n *node.Node) error {
				printEntry(p, n, width)
				return nil
			})
		}

		children, err := img.ListChildren(ns, path)
		if err != nil {
			return fmt.Errorf("listing %q: %w", path, err)
		}
		for _, n := range children {
			printEntry(n.Name[ns], n, width)
		}
		return nil
	},
}

func printEntry(name string, n *node.Node, width int) {
	kind := "-"
	if n.IsDirectory() {
		kind = "d"
	} else if n.Kind == node.KindSymlink {
		kind = "l"
	}
	label := name
	if width > 0 && len(label) > width-16 && width > 24 {
		label = label[:width-19] + "..."
	}
	fmt.Printf("%s %10d %s\n", kind, n.Length, label)
}

func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func parseNamespace(s string) (node.Namespace, error) {
	switch s {
	case "", "iso9660", "iso", "rock-ridge", "rr":
		return node.ISO9660, nil
	case "joliet":
		return node.Joliet, nil
	case "udf":
		return node.UDF, nil
	default:
		return node.ISO9660, fmt.Errorf("unknown namespace %q (want iso9660, joliet, or udf)", s)
	}
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().StringVar(&lsNamespace, "ns", "iso9660", "namespace to list: iso9660, joliet, or udf")
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "R", false, "recurse into subdirectories")
}
