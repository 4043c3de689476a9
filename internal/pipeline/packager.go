package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/melih-ucgun/vigil/internal/consts"
	"github.com/melih-ucgun/vigil/internal/template"
)

// Packager, build çıktılarını dağıtılabilir zip artifact'larına çevirir.
// Her kaynak için <buildDir>/<id>.zip üretilir.
type Packager struct {
	Logger       *slog.Logger
	Loader       *template.Loader
	TemplatePath string
	BuildDir     string

	stacks []*template.Stack
}

func (p *Packager) SetUp() error {
	stacks, err := p.Loader.Load(p.TemplatePath)
	if err != nil {
		return err
	}
	p.stacks = stacks
	return nil
}

func (p *Packager) Run(ctx context.Context) error {
	if p.stacks == nil {
		if err := p.SetUp(); err != nil {
			return err
		}
	}

	for _, id := range template.AllResourceIDs(p.stacks) {
		res, _ := template.FindResource(p.stacks, id)
		if res == nil || !buildable(res.Type) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		builtDir := filepath.Join(p.BuildDir, SanitizeID(id))
		if _, err := os.Stat(builtDir); err != nil {
			// Derlenmemiş kaynak paketlenmez; build adımı zaten loglamıştır.
			continue
		}
		if _, err := p.PackageResource(id, builtDir); err != nil {
			return fmt.Errorf("paketleme hatası (%s): %w", id, err)
		}
	}
	return nil
}

// PackageResource, derlenmiş tek bir dizini zip'e çevirir ve artifact
// yolunu döner.
func (p *Packager) PackageResource(id template.ResourceID, builtDir string) (string, error) {
	artifact := filepath.Join(p.BuildDir, SanitizeID(id)+consts.ArtifactSuffix)

	out, err := os.Create(artifact)
	if err != nil {
		return "", err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(builtDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(builtDir, path)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		header, headerErr := zip.FileInfoHeader(info)
		if headerErr != nil {
			return headerErr
		}
		header.Name = filepath.ToSlash(rel)
		header.Method = zip.Deflate

		w, createErr := zw.CreateHeader(header)
		if createErr != nil {
			return createErr
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		_, copyErr := io.Copy(w, f)
		return copyErr
	})
	if err != nil {
		_ = zw.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	if p.Logger != nil {
		p.Logger.Debug("artifact paketlendi", "resource", id, "artifact", artifact)
	}
	return artifact, nil
}
