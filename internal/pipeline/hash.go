package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/melih-ucgun/vigil/internal/observer"
)

// HashDir, bir dizin ağacının deterministik özetini üretir. Göreli yol ve
// içerik birlikte özetlenir; excludes desenlerine takılan girdiler atlanır.
// Sync akışları "yerel değişti mi" kararını bu özetle verir.
func HashDir(root string, excludes []string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if observer.Excluded(rel, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		h.Write([]byte(filepath.ToSlash(rel)))
		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		_, copyErr := io.Copy(h, f)
		f.Close()
		return copyErr
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
