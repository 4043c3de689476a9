package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/melih-ucgun/vigil/internal/consts"
	"github.com/melih-ucgun/vigil/internal/observer"
	"github.com/melih-ucgun/vigil/internal/template"
)

// Builder, şablondaki her derlenebilir kaynağı build dizini altına çıkarır.
// Kaynakta özel bir build komutu tanımlıysa Runner üzerinden çalıştırılır;
// yoksa kaynak ağacı (dışlamalar düşülerek) kopyalanır.
type Builder struct {
	Logger       *slog.Logger
	Loader       *template.Loader
	TemplatePath string
	BaseDir      string
	BuildDir     string

	stacks []*template.Stack
}

// SetUp, stack modelini diskten yeniden okur.
func (b *Builder) SetUp() error {
	stacks, err := b.Loader.Load(b.TemplatePath)
	if err != nil {
		return err
	}
	b.stacks = stacks
	return nil
}

// Run, tüm derlenebilir kaynakları sırayla derler. Tek kaynağın hatası
// kalanları durdurmaz; hatalar toplanıp tek hata olarak döner.
func (b *Builder) Run(ctx context.Context) error {
	if b.stacks == nil {
		if err := b.SetUp(); err != nil {
			return err
		}
	}

	var failed []string
	for _, id := range template.AllResourceIDs(b.stacks) {
		res, _ := template.FindResource(b.stacks, id)
		if res == nil || !buildable(res.Type) {
			continue
		}
		if _, err := b.BuildResource(ctx, res); err != nil {
			b.logger().Error("kaynak derlenemedi", "resource", id, "error", err)
			failed = append(failed, id.String())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("derleme hatası: %s", strings.Join(failed, ", "))
	}
	return nil
}

// BuildResource, tek bir kaynağı derler ve çıktı dizinini döner.
func (b *Builder) BuildResource(ctx context.Context, res *template.Resource) (string, error) {
	srcDir, buildCmd, err := buildInputs(res, b.BaseDir)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(b.BuildDir, SanitizeID(res.ID))
	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", err
	}

	if buildCmd != "" {
		cmd := exec.CommandContext(ctx, "sh", "-c", buildCmd)
		cmd.Dir = srcDir
		cmd.Env = append(os.Environ(), "VIGIL_BUILD_DIR="+dest)
		if out, runErr := CommandRunner.CombinedOutput(cmd); runErr != nil {
			return "", fmt.Errorf("build komutu başarısız (%s): %w: %s", res.ID, runErr, strings.TrimSpace(string(out)))
		}
		b.logger().Debug("build komutu tamamlandı", "resource", res.ID, "cmd", buildCmd)
		return dest, nil
	}

	// Varsayılan build: kaynak ağacını dışlamaları düşerek kopyala.
	if err := copyTree(srcDir, dest, consts.DefaultWatchExcludes); err != nil {
		return "", fmt.Errorf("kaynak ağacı kopyalanamadı (%s): %w", res.ID, err)
	}
	return dest, nil
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// SanitizeID, kaynak kimliğini dosya adı olarak kullanılabilir hale getirir.
func SanitizeID(id template.ResourceID) string {
	return strings.ReplaceAll(id.String(), "/", "__")
}

// buildable, kaynak tipinin build çıktısı üretip üretmediğini söyler.
func buildable(resType string) bool {
	return resType == template.TypeFunction || resType == template.TypeLayer
}

// buildInputs, kaynağın kaynak dizinini ve varsa build komutunu çözer.
func buildInputs(res *template.Resource, baseDir string) (string, string, error) {
	switch res.Type {
	case template.TypeFunction:
		props, err := res.FunctionProps()
		if err != nil {
			return "", "", err
		}
		dir := props.CodeDir
		if props.Packaging == "image" && props.Context != "" {
			dir = props.Context
		}
		if dir == "" {
			return "", "", fmt.Errorf("kaynağın kod dizini yok: %s", res.ID)
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		return dir, props.Build, nil
	case template.TypeLayer:
		props, err := res.LayerProps()
		if err != nil {
			return "", "", err
		}
		if props.ContentDir == "" {
			return "", "", fmt.Errorf("katmanın içerik dizini yok: %s", res.ID)
		}
		dir := props.ContentDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		return dir, props.Build, nil
	default:
		return "", "", fmt.Errorf("derlenemeyen kaynak tipi: %s", res.Type)
	}
}

// copyTree, src ağacını dst altına kopyalar; excludes'a takılanlar atlanır.
func copyTree(src, dst string, excludes []string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		if observer.Excluded(rel, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
