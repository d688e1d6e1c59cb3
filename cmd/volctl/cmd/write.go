package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/theckman/yacspin"
	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
)

var (
	writeJoliet    bool
	writeRockRidge bool
	writeUDF       bool
	writeVolID     string
	writePublisher string
	writeApp       string
	writeSystem    string
)

var writeCmd = &cobra.Command{
	Use:   "write <source-dir> <output.iso>",
	Short: "Build a new image from a source directory tree",
	Long: `Recursively adds every file and directory under source-dir to a
new image and writes it to output.iso.

Namespace flags default to the values in --config if one was given,
otherwise Joliet and Rock Ridge on, UDF off.`,
	Args: cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		srcDir, outPath := args[0], args[1]

		// Flags take precedence over --config when the caller explicitly
		// set them; otherwise the loaded config's values apply, since
		// PersistentPreRunE (which reads --config) runs before RunE but
		// after the flag defaults baked in at registration time.
		joliet := resolveBool(c, "joliet", writeJoliet, cfg.Joliet)
		rockRidge := resolveBool(c, "rock-ridge", writeRockRidge, cfg.RockRidge)
		udf := resolveBool(c, "udf", writeUDF, cfg.UDF)
		volID := resolveString(c, "volid", writeVolID, cfg.VolumeIdentifier)
		publisher := resolveString(c, "publisher", writePublisher, cfg.PublisherID)
		app := resolveString(c, "application", writeApp, cfg.ApplicationID)
		system := resolveString(c, "system", writeSystem, cfg.SystemID)

		spinner, err := newSpinner("staging " + srcDir)
		if err != nil {
			return err
		}
		_ = spinner.Start()

		img, err := voliso.New(
			option.WithJoliet(joliet),
			option.WithRockRidge(rockRidge),
			option.WithUDF(udf),
			option.WithVolumeIdentifier(strings.ToUpper(volID)),
			option.WithPublisherIdentifier(publisher),
			option.WithApplicationIdentifier(app),
			option.WithSystemIdentifier(system),
			option.WithCreateLogger(log),
			option.WithCreateProgress(func(name string, transferred, total int64, fileNum, fileCount int) {
				spinner.Message(fmt.Sprintf("writing %s (%d/%d, %d/%d bytes)", name, fileNum, fileCount, transferred, total))
			}),
		)
		if err != nil {
			_ = spinner.StopFail()
			return fmt.Errorf("initializing image: %w", err)
		}

		fileCount := 0
		err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, err := filepath.Rel(srcDir, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			isoPath := "/" + filepath.ToSlash(rel)
			if d.IsDir() {
				return img.AddDirectory(node.ISO9660, isoPath)
			}
			spinner.Message(fmt.Sprintf("adding %s", isoPath))
			jolietPath := ""
			if joliet {
				jolietPath = isoPath
			}
			fileCount++
			return img.AddFile(path, voliso.AddFpOptions{
				ISOPath:    withVersion(isoPath),
				RRName:     filepath.Base(path),
				JolietPath: jolietPath,
			})
		})
		if err != nil {
			_ = spinner.StopFail()
			return fmt.Errorf("staging %s: %w", srcDir, err)
		}

		// Per-file progress during the write itself comes from the
		// WithCreateProgress callback above.
		spinner.Message(fmt.Sprintf("writing %d files to %s", fileCount, outPath))
		if err := img.Write(outPath); err != nil {
			_ = spinner.StopFail()
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		_ = spinner.Stop()
		return nil
	},
}

// withVersion appends the ISO9660 ";1" version suffix if the caller's
// path does not already carry one.
func withVersion(isoPath string) string {
	if strings.Contains(filepath.Base(isoPath), ";") {
		return isoPath
	}
	return isoPath + ";1"
}

func newSpinner(initial string) (*yacspin.Spinner, error) {
	spinCfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " " + initial,
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
	return yacspin.New(spinCfg)
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().BoolVar(&writeJoliet, "joliet", cfg.Joliet, "enable the Joliet namespace")
	writeCmd.Flags().BoolVar(&writeRockRidge, "rock-ridge", cfg.RockRidge, "enable Rock Ridge extensions")
	writeCmd.Flags().BoolVar(&writeUDF, "udf", cfg.UDF, "enable the UDF bridge namespace")
	writeCmd.Flags().StringVar(&writeVolID, "volid", cfg.VolumeIdentifier, "volume identifier")
	writeCmd.Flags().StringVar(&writePublisher, "publisher", cfg.PublisherID, "publisher identifier")
	writeCmd.Flags().StringVar(&writeApp, "application", cfg.ApplicationID, "application identifier")
	writeCmd.Flags().StringVar(&writeSystem, "system", cfg.SystemID, "system identifier")
}
