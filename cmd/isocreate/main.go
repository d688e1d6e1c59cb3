// Command isocreate builds a single new image from a source directory
// tree, using New/AddDirectory/AddFile/Write directly without the
// cobra-based flag surface cmd/volctl exposes.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
)

func main() {
	volID := flag.String("volid", "ISOCREATE", "volume identifier")
	joliet := flag.Bool("joliet", true, "enable the Joliet namespace")
	rockRidge := flag.Bool("rockridge", true, "enable Rock Ridge extensions")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Println("Usage: isocreate [options] <source-dir> <output.iso>")
		os.Exit(1)
	}
	source, dest := flag.Arg(0), flag.Arg(1)

	img, err := voliso.New(
		option.WithVolumeIdentifier(*volID),
		option.WithJoliet(*joliet),
		option.WithRockRidge(*rockRidge),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create image: %v\n", err)
		os.Exit(1)
	}

	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(source, path)
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
		jolietPath := ""
		if *joliet {
			jolietPath = isoPath
		}
		return img.AddFile(path, voliso.AddFpOptions{
			ISOPath:    isoPath + ";1",
			RRName:     filepath.Base(path),
			JolietPath: jolietPath,
		})
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to stage %q: %v\n", source, err)
		os.Exit(1)
	}

	if err := img.Write(dest); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s from %s\n", dest, source)
}
