package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/eltorito"
	"github.com/voliso/voliso/pkg/option"
)

var (
	eltoritoPlatform  string
	eltoritoEmulation string
	eltoritoLoadSeg   uint16
	eltoritoLoadSize  uint16
	eltoritoRemove    bool
)

var eltoritoCmd = &cobra.Command{
	Use:   "eltorito <image> [boot-file]",
	Short: "Install or remove an El Torito boot catalog",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(c *cobra.Command, args []string) error {
		imagePath := args[0]

		img, err := voliso.Open(imagePath, option.WithLogger(log))
		if err != nil {
			return fmt.Errorf("opening %q: %w", imagePath, err)
		}

		if eltoritoRemove {
			if err := img.RmElTorito(); err != nil {
				img.Close()
				return fmt.Errorf("removing boot catalog: %w", err)
			}
			if err := rewriteInPlace(img, imagePath); err != nil {
				return err
			}
			log.Info("removed el torito boot catalog", "image", imagePath)
			return nil
		}

		if len(args) != 2 {
			img.Close()
			return fmt.Errorf("eltorito requires a boot-file argument unless --remove is given")
		}
		platform, err := parsePlatform(eltoritoPlatform)
		if err != nil {
			img.Close()
			return err
		}
		emulation, err := parseEmulation(eltoritoEmulation)
		if err != nil {
			img.Close()
			return err
		}

		if err := img.AddElTorito(voliso.AddElToritoOptions{
			BootFilePath: args[1],
			LoadSegment:  eltoritoLoadSeg,
			BootLoadSize: eltoritoLoadSize,
			PlatformID:   platform,
			Emulation:    emulation,
		}); err != nil {
			img.Close()
			return fmt.Errorf("installing boot catalog: %w", err)
		}

		if err := rewriteInPlace(img, imagePath); err != nil {
			return err
		}
		log.Info("installed el torito boot catalog", "boot_file", args[1], "platform", platform.String(), "image", imagePath)
		return nil
	},
}

func parsePlatform(s string) (eltorito.Platform, error) {
	switch s {
	case "", "bios":
		return eltorito.PlatformBIOS, nil
	case "efi":
		return eltorito.PlatformEFI, nil
	case "mac":
		return eltorito.PlatformMac, nil
	case "ppc":
		return eltorito.PlatformPPC, nil
	default:
		return eltorito.PlatformBIOS, fmt.Errorf("unknown platform %q (want bios, efi, mac, or ppc)", s)
	}
}

func parseEmulation(s string) (eltorito.Emulation, error) {
	switch s {
	case "", "none":
		return eltorito.NoEmulation, nil
	case "floppy1.2", "1.2":
		return eltorito.Floppy12Emulation, nil
	case "floppy1.44", "1.44":
		return eltorito.Floppy144Emulation, nil
	case "floppy2.88", "2.88":
		return eltorito.Floppy288Emulation, nil
	case "hd", "harddisk":
		return eltorito.HardDiskEmulation, nil
	default:
		return eltorito.NoEmulation, fmt.Errorf("unknown emulation %q (want none, floppy1.2, floppy1.44, floppy2.88, or hd)", s)
	}
}

func init() {
	rootCmd.AddCommand(eltoritoCmd)
	eltoritoCmd.Flags().StringVar(&eltoritoPlatform, "platform", "bios", "boot platform: bios, efi, mac, or ppc")
	eltoritoCmd.Flags().StringVar(&eltoritoEmulation, "emulation", "none", "boot emulation mode")
	eltoritoCmd.Flags().Uint16Var(&eltoritoLoadSeg, "load-segment", 0, "x86 real-mode load segment")
	eltoritoCmd.Flags().Uint16Var(&eltoritoLoadSize, "load-size", 0, "512-byte sectors to load (0 autodetects from boot-file size)")
	eltoritoCmd.Flags().BoolVar(&eltoritoRemove, "remove", false, "remove the existing boot catalog instead of installing one")
}
