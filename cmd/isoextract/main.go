package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
)

func main() {
	// Extraction options
	bootImages := flag.Bool("boot", false, "Extract boot images (El Torito)")
	rockRidge := flag.Bool("rockridge", true, "Enable Rock Ridge support")
	udf := flag.Bool("udf", false, "Parse the UDF bridge if present")
	stripVer := flag.Bool("strip", true, "Strip version info from filenames")

	// Output directory
	outputDir := flag.String("o", "./extracted", "Output directory for extracted files")
	bootDir := flag.String("bootdir", "[BOOT]", "Output directory for boot images")

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: isoextract [options] <path-to-iso>")
		fmt.Println("  -boot            Extract boot images (El Torito)")
		fmt.Println("  -rockridge       Enable Rock Ridge support (default: true)")
		fmt.Println("  -udf             Parse the UDF bridge if present (default: false)")
		fmt.Println("  -strip           Strip version info from filenames (default: true)")
		fmt.Println("  -o <directory>   Output directory (default './extracted')")
		fmt.Println("  -bootdir <dir>   Output directory for boot images (default '[BOOT]')")
		os.Exit(1)
	}

	isoPath := flag.Arg(0)

	img, err := voliso.Open(
		isoPath,
		option.WithElToritoEnabled(*bootImages),
		option.WithRockRidgeEnabled(*rockRidge),
		option.WithUDFEnabled(*udf),
		option.WithBootFileLocation(*bootDir),
		option.WithStripVersionInfo(*stripVer),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ISO: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()

	if err := extractTree(img, node.ISO9660, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to extract image: %v\n", err)
		os.Exit(1)
	}

	if *bootImages {
		// Destination comes from the boot file location threaded through
		// option.WithBootFileLocation above.
		written, err := img.ExtractBootImages("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to extract boot images: %v\n", err)
			os.Exit(1)
		}
		for _, p := range written {
			fmt.Printf("Extracted boot image %s\n", p)
		}
	}

	fmt.Printf("Extraction completed successfully to '%s'.\n", *outputDir)
}

func extractTree(img *voliso.Image, ns node.Namespace, outputDir string) error {
	return img.Walk(ns, "/", func(path string, n *node.Node) error {
		dest := filepath.Join(outputDir, filepath.FromSlash(path))
		if n.IsDirectory() {
			return os.MkdirAll(dest, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		rc, err := img.OpenFileFromISO(ns, path)
		if err != nil {
			return err
		}
		defer rc.Close()

		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, rc)
		return err
	})
}
