package main

import (
	"fmt"
	"os"

	"github.com/bgrewell/usage"
	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
	"github.com/voliso/voliso/pkg/version"
)

// DisplayISOInfo prints general information about the image.
func DisplayISOInfo(img *voliso.Image, verbose bool) {
	rrEnabled := 0
	symlinks := 0
	fileCount := 0
	dirCount := 0
	totalSize := uint64(0)

	_ = img.Walk(node.ISO9660, "/", func(path string, n *node.Node) error {
		if n.IsDirectory() {
			dirCount++
			return nil
		}
		fileCount++
		totalSize += uint64(n.Length)
		if n.RockRidge != nil {
			rrEnabled++
		}
		if n.Kind == node.KindSymlink {
			symlinks++
		}
		return nil
	})

	root, err := img.GetRecord(node.ISO9660, "/")
	if err != nil {
		fmt.Println("Failed to read root directory:", err)
		return
	}

	fmt.Println("=== ISO Information ===")
	fmt.Printf("Total Files: %d\n", fileCount)
	fmt.Printf("Total Directories: %d\n", dirCount)
	fmt.Printf("Total Size: %d bytes (%.2f MB)\n", totalSize, float64(totalSize)/1024/1024)
	fmt.Printf("Root Directory Location: %d (LBA)\n", root.Extent)

	if verbose {
		fmt.Println("\n=== Verbose Information ===")
		fmt.Printf("Symbolic Links: %d\n", symlinks)

		if img.HasNamespace(node.Joliet) {
			fmt.Println("\n--- Joliet Extensions ---")
			fmt.Println("Joliet Enabled: YES")
		} else {
			fmt.Println("\nJoliet Extensions: NOT PRESENT")
		}

		if rrEnabled > 0 {
			fmt.Println("\n--- Rock Ridge Extensions ---")
			fmt.Println("Rock Ridge Enabled: YES")
			fmt.Printf("  Number of Entries with Rock Ridge Metadata: %d\n", rrEnabled)
		} else {
			fmt.Println("\nRock Ridge Extensions: NOT PRESENT")
		}

		if img.HasNamespace(node.UDF) {
			fmt.Println("\n--- UDF Bridge ---")
			fmt.Println("UDF Bridge Present: YES")
		}
	}

	fmt.Println("=========================")
}

func main() {

	u := usage.NewUsage(
		usage.WithApplicationVersion(version.Version()),
		usage.WithApplicationBranch(version.Branch()),
		usage.WithApplicationBuildDate(version.Date()),
		usage.WithApplicationCommitHash(version.Revision()),
		usage.WithApplicationName("isoview"),
		usage.WithApplicationDescription("isoview is a command-line tool for inspecting ISO9660 images. It prints the file and directory counts, the total file size, and the root directory location; with -v it also prints the symbolic link count and whether Joliet, Rock Ridge, and UDF are present."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "Print verbose output", "", nil)
	path := u.AddArgument(1, "iso-path", "Path to the file within the ISO to read", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("location of the iso file <path> must be provided"))
		os.Exit(1)
	}

	img, err := voliso.Open(*path, option.WithUDFEnabled(true))
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
	defer img.Close()

	DisplayISOInfo(img, *verbose)
}
