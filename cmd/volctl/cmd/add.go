package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/option"
)

var (
	addJolietPath string
	addUDFPath    string
	addRRName     string
)

var addCmd = &cobra.Command{
	Use:   "add <image> <local-file> <iso-path>",
	Short: "Add a local file to an existing image",
	Long: `Opens image, stages local-file at iso-path (and, if given,
--joliet-path/--udf-path in those namespaces), and rewrites the image.`,
	Args: cobra.ExactArgs(3),
	RunE: func(c *cobra.Command, args []string) error {
		imagePath, localPath, isoPath := args[0], args[1], args[2]

		img, err := voliso.Open(imagePath, option.WithLogger(log))
		if err != nil {
			return fmt.Errorf("opening %q: %w", imagePath, err)
		}

		rrName := addRRName
		if rrName == "" {
			rrName = filepath.Base(isoPath)
		}
		if err := img.AddFile(localPath, voliso.AddFpOptions{
			ISOPath:    withVersion(isoPath),
			RRName:     rrName,
			JolietPath: addJolietPath,
			UDFPath:    addUDFPath,
		}); err != nil {
			img.Close()
			return fmt.Errorf("adding %q: %w", localPath, err)
		}

		if err := rewriteInPlace(img, imagePath); err != nil {
			return err
		}
		log.Info("added file", "iso_path", isoPath, "image", imagePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVar(&addJolietPath, "joliet-path", "", "also link the file at this Joliet path")
	addCmd.Flags().StringVar(&addUDFPath, "udf-path", "", "also link the file at this UDF path")
	addCmd.Flags().StringVar(&addRRName, "rr-name", "", "Rock Ridge name (defaults to the iso-path's basename)")
}
