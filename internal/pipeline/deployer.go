package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/melih-ucgun/vigil/internal/consts"
	"github.com/melih-ucgun/vigil/internal/state"
	"github.com/melih-ucgun/vigil/internal/template"
	"github.com/melih-ucgun/vigil/internal/transport"
)

// Deployer, paketlenmiş artifact'ları transport üzerinden hedefe taşır,
// fiziksel kimlikleri ve hash'leri state dosyasına işler.
type Deployer struct {
	Logger       *slog.Logger
	Loader       *template.Loader
	TemplatePath string
	BuildDir     string
	RemoteDir    string
	Transport    transport.Transport
	State        *state.Manager

	stacks []*template.Stack
}

func (d *Deployer) SetUp() error {
	stacks, err := d.Loader.Load(d.TemplatePath)
	if err != nil {
		return err
	}
	d.stacks = stacks
	return nil
}

func (d *Deployer) Run(ctx context.Context) error {
	if d.stacks == nil {
		if err := d.SetUp(); err != nil {
			return err
		}
	}

	var deployed []string
	for _, id := range template.AllResourceIDs(d.stacks) {
		res, _ := template.FindResource(d.stacks, id)
		if res == nil || !buildable(res.Type) {
			continue
		}
		artifact := filepath.Join(d.BuildDir, SanitizeID(id)+consts.ArtifactSuffix)
		if _, err := os.Stat(artifact); err != nil {
			continue
		}
		physicalID, err := d.DeployArtifact(ctx, id, artifact)
		if err != nil {
			_, _ = d.State.RecordTransaction("infra", "failed", deployed)
			return fmt.Errorf("dağıtım hatası (%s): %w", id, err)
		}
		deployed = append(deployed, id.String())
		d.logger().Info("kaynak dağıtıldı", "resource", id, "target", physicalID)
	}

	if _, err := d.State.RecordTransaction("infra", "success", deployed); err != nil {
		return err
	}
	return nil
}

// DeployArtifact, tek bir artifact'ı yükler ve fiziksel kimliğini döner.
// Fiziksel kimlik hedefteki artifact yoludur; yanına hash dosyası yazılır
// ki sonraki sync akışları uzak durumu karşılaştırabilsin. Hash zip'in
// değil derlenmiş ağacın özetidir: zip zaman damgaları yüzünden aynı içerik
// farklı bayt dizisi üretebilir, ağaç özeti ise kaynak dizin özetiyle
// birebir karşılaştırılabilir.
func (d *Deployer) DeployArtifact(ctx context.Context, id template.ResourceID, artifact string) (string, error) {
	builtDir := strings.TrimSuffix(artifact, consts.ArtifactSuffix)
	hash, err := HashDir(builtDir, nil)
	if err != nil {
		return "", err
	}

	remotePath := path.Join(d.RemoteDir, SanitizeID(id)+consts.ArtifactSuffix)
	if err := d.Transport.Upload(ctx, artifact, remotePath); err != nil {
		return "", err
	}

	hashFile := artifact + ".sha256"
	if err := os.WriteFile(hashFile, []byte(hash), 0644); err != nil {
		return "", err
	}
	if err := d.Transport.Upload(ctx, hashFile, remotePath+".sha256"); err != nil {
		return "", err
	}

	if err := d.State.RecordResource(id.String(), remotePath, hash); err != nil {
		return "", err
	}
	return remotePath, nil
}

func (d *Deployer) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
