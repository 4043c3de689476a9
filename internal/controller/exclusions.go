package controller

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/melih-ucgun/vigil/internal/consts"
	"github.com/melih-ucgun/vigil/internal/template"
)

// Exclusions, izleme dışı bırakılacak desenlerin kaynak başına birleşimini
// üretir: motor varsayılanları + build/cache dizinleri + kullanıcı desenleri.
// "*" anahtarı tüm kaynaklara uygulanır.
type Exclusions struct {
	defaults    []string
	perResource map[string][]string
}

// NewExclusions, birleşik dışlama kümesini kurar. Build ve cache dizinleri
// izlenen ağacın altına düşüyorsa ilk yol parçası desen olarak eklenir;
// ağacın dışındaysa kendi kendine özyineleme riski olmadığından atlanır.
// buildInSource açıkken build/cache kaynak ağacının içindeyse uyarı basılır;
// rebuild döngülerinin bir numaralı sebebi budur.
func NewExclusions(logger *slog.Logger, baseDir, buildDir, cacheDir string, buildInSource bool, user map[string][]string) *Exclusions {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exclusions{
		defaults:    append([]string(nil), consts.DefaultWatchExcludes...),
		perResource: make(map[string][]string),
	}

	for _, dir := range []string{buildDir, cacheDir} {
		pattern, ok := relativePattern(baseDir, dir)
		if !ok {
			continue
		}
		if buildInSource {
			logger.Warn("build/cache dizini izlenen kaynak ağacının içinde; derleme çıktıları izlemeden düşülüyor",
				"dir", dir, "pattern", pattern)
		}
		if !contains(e.defaults, pattern) {
			e.defaults = append(e.defaults, pattern)
		}
	}

	for key, patterns := range user {
		e.perResource[key] = append(e.perResource[key], patterns...)
	}
	return e
}

// For, verilen kaynağın birleşik dışlama desenlerini döner.
func (e *Exclusions) For(id template.ResourceID) []string {
	out := append([]string(nil), e.defaults...)
	out = append(out, e.perResource["*"]...)
	out = append(out, e.perResource[id.String()]...)
	return out
}

// relativePattern, dir izlenen ağacın altındaysa ağaca göre ilk yol
// parçasını desen olarak döner. Dışlama desenleri yol segmentlerine tek tek
// uygulandığından ilk parça alt ağacın tamamını keser.
func relativePattern(baseDir, dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absBase, absDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return parts[0], true
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
