package testing

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/voliso/voliso/pkg/node"
)

// ContainsNonASCIIPrintable returns true if the string has any
// characters outside ASCII [32..126], i.e., not a standard printable.
func ContainsNonASCIIPrintable(s string) bool {
	for _, r := range s {
		if r < 32 || r > 126 {
			return true
		}
	}
	return false
}

// Validate compares every node reachable from path in namespace ns
// against ground-truth JSON.
func Validate(arena *node.Arena, ns node.Namespace, path string, gtPath string) error {
	groundTruth, err := LoadGroundTruth(gtPath)
	if err != nil {
		return err
	}

	root, err := arena.Resolve(ns, path)
	if err != nil {
		return err
	}

	walkedMap := make(map[string]*node.Node)
	if err := arena.Walk(ns, root.ID, func(walkPath string, n *node.Node) error {
		if n == root {
			return nil
		}
		walkedMap[walkPath] = n
		if ContainsNonASCIIPrintable(n.Name[ns]) {
			return fmt.Errorf("non-ASCII printable characters in entry: %s", n.Name[ns])
		}
		return nil
	}); err != nil {
		return err
	}

	gtMap := make(map[string]GroundTruthEntry)
	for _, gt := range groundTruth {
		gtMap[gt.Name] = gt
	}

	var missing []GroundTruthEntry
	for name, gt := range gtMap {
		if _, found := walkedMap[name]; !found {
			missing = append(missing, gt)
		}
	}

	var extra []string
	for name := range walkedMap {
		if _, found := gtMap[name]; !found {
			extra = append(extra, name)
		}
	}

	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("VALIDATION RESULTS")
	fmt.Println(strings.Repeat("=", 40))

	if len(missing) == 0 && len(extra) == 0 {
		fmt.Println("All entries match the ground truth!")
		return nil
	}

	if len(missing) > 0 {
		fmt.Println("Missing entries (in ground truth, not walked):")
		for _, m := range missing {
			t := "FILE"
			if m.IsDirectory {
				t = "DIR"
			}
			fmt.Printf("  - [%s] %s\n", t, m.Name)
		}
	} else {
		fmt.Println("No missing entries.")
	}

	if len(extra) > 0 {
		fmt.Println("\nExtra entries (walked, not in ground truth):")
		for _, x := range extra {
			n := walkedMap[x]
			t := "FILE"
			if n.IsDirectory() {
				t = "DIR"
			}
			fmt.Printf("  - [%s] %s\n", t, x)
		}
	} else {
		fmt.Println("No extra entries.")
	}

	fmt.Println(strings.Repeat("=", 40))
	return nil
}

// GroundTruthEntry represents a single record from the JSON.
type GroundTruthEntry struct {
	Date           string `json:"date"`
	Time           string `json:"time"`
	Attr           string `json:"attr"`
	Size           int64  `json:"size"`
	CompressedSize int64  `json:"compressed_size"`
	Name           string `json:"name"`
	IsDirectory    bool   `json:"is_directory"`
}

// LoadGroundTruth reads the JSON from a file and unmarshals it into a slice.
func LoadGroundTruth(filePath string) ([]GroundTruthEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entries []GroundTruthEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return entries, nil
}
