package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/option"
)

var isohybridRemove bool

var isohybridCmd = &cobra.Command{
	Use:   "isohybrid <image> [mbr-file]",
	Short: "Install or remove isohybrid boot code in an image's reserved system area",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(c *cobra.Command, args []string) error {
		imagePath := args[0]

		img, err := voliso.Open(imagePath, option.WithLogger(log))
		if err != nil {
			return fmt.Errorf("opening %q: %w", imagePath, err)
		}

		if isohybridRemove {
			if err := img.RmIsoHybrid(); err != nil {
				img.Close()
				return fmt.Errorf("removing isohybrid boot code: %w", err)
			}
			if err := rewriteInPlace(img, imagePath); err != nil {
				return err
			}
			log.Info("removed isohybrid boot code", "image", imagePath)
			return nil
		}

		if len(args) != 2 {
			img.Close()
			return fmt.Errorf("isohybrid requires an mbr-file argument unless --remove is given")
		}
		mbr, err := os.ReadFile(args[1])
		if err != nil {
			img.Close()
			return fmt.Errorf("reading %q: %w", args[1], err)
		}
		if err := img.AddIsoHybrid(mbr); err != nil {
			img.Close()
			return fmt.Errorf("installing isohybrid boot code: %w", err)
		}

		if err := rewriteInPlace(img, imagePath); err != nil {
			return err
		}
		log.Info("installed isohybrid boot code", "mbr_file", args[1], "image", imagePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(isohybridCmd)
	isohybridCmd.Flags().BoolVar(&isohybridRemove, "remove", false, "remove existing isohybrid boot code instead of installing")
}
