package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/voliso/voliso"
)

// rewriteInPlace writes img to a temporary file next to imagePath and
// renames it over the original once the write succeeds, so a read-modify-
// write command (add/rm/eltorito/isohybrid) never truncates the very file
// its still-open payload sources are streaming from mid-write.
func rewriteInPlace(img *voliso.Image, imagePath string) error {
	dir := filepath.Dir(imagePath)
	tmp, err := os.CreateTemp(dir, ".volctl-*.iso.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %q: %w", dir, err)
	}
	tmpPath := tmp.Name()

	writeErr := img.WriteFp(tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %q: %w", imagePath, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %q: %w", tmpPath, closeErr)
	}

	// Release the old file handle before replacing it; on some platforms
	// renaming over a still-open file is refused.
	if err := img.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %q: %w", imagePath, err)
	}

	if err := os.Rename(tmpPath, imagePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %q: %w", imagePath, err)
	}
	return nil
}
