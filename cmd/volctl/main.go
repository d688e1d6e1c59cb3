// Command volctl is a cobra-based CLI around the voliso package: it can
// list, add, remove, and write optical disc images, and load default
// option values from a YAML config file.
package main

import "github.com/voliso/voliso/cmd/volctl/cmd"

func main() {
	cmd.Execute()
}
