package main

import (
	"fmt"
	"os"

	"github.com/voliso/voliso"
	"github.com/voliso/voliso/pkg/node"
	"github.com/voliso/voliso/pkg/option"
)

func main() {
	img, err := voliso.New(
		option.WithVolumeIdentifier("UBUNTU"),
		option.WithAlwaysConsistent(true),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create image: %v\n", err)
		os.Exit(1)
	}

	if err := img.AddDirectory(node.ISO9660, "/boot"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create /boot: %v\n", err)
		os.Exit(1)
	}

	if err := img.Write("/tmp/validation.iso"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write image: %v\n", err)
		os.Exit(1)
	}
}
