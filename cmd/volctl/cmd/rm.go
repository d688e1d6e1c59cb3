package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/option"
)

var (
	rmNamespace string
	rmDirectory bool
	rmAll       bool
)

var rmCmd = &cobra.Command{
	Use:   "rm <image> <path>",
	Short: "Remove a file or directory link from an image",
	Long: `Removes path's link in a single namespace, leaving any link the
same file holds in other namespaces untouched. Use --all to remove the
file's links in every namespace, and --dir for an empty directory.`,
	Args: cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		imagePath, path := args[0], args[1]
		ns, err := parseNamespace(rmNamespace)
		if err != nil {
			return err
		}

		img, err := voliso.Open(imagePath, option.WithLogger(log))
		if err != nil {
			return fmt.Errorf("opening %q: %w", imagePath, err)
		}

		if rmDirectory {
			err = img.RmDirectory(ns, path)
		} else if rmAll {
			err = img.RmFile(ns, path)
		} else {
			err = img.RmHardLink(ns, path)
		}
		if err != nil {
			img.Close()
			return fmt.Errorf("removing %q: %w", path, err)
		}

		if err := rewriteInPlace(img, imagePath); err != nil {
			return err
		}
		log.Info("removed", "path", path, "namespace", ns.String(), "image", imagePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().StringVar(&rmNamespace, "ns", "iso9660", "namespace to remove the link from: iso9660, joliet, or udf")
	rmCmd.Flags().BoolVar(&rmDirectory, "dir", false, "path names an empty directory, not a file")
	rmCmd.Flags().BoolVar(&rmAll, "all", false, "remove the file's links in every namespace, not just --ns")
}
