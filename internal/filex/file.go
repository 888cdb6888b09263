package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFilePrivate writes data to name readable only by the owner,
// creating missing parent directories.
func WriteFilePrivate(name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if err := os.WriteFile(name, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
