package testing

import "github.com/voliso/voliso/pkg/node"

// GetFileAndFolderCounts walks namespace ns from path and reports how many
// directories and files it contains, excluding path itself.
func GetFileAndFolderCounts(arena *node.Arena, ns node.Namespace, path string) (folders, files int, err error) {
	root, err := arena.Resolve(ns, path)
	if err != nil {
		return 0, 0, err
	}
	err = arena.Walk(ns, root.ID, func(walkPath string, n *node.Node) error {
		if n == root {
			return nil
		}
		if n.IsDirectory() {
			folders++
		} else {
			files++
		}
		return nil
	})
	return folders, files, err
}
