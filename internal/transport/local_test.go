package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/melih-ucgun/vigil/internal/template"
)

func TestLocalTransportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "artifact.zip")
	if err := os.WriteFile(src, []byte("içerik"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := NewLocalTransport()
	defer tr.Close()

	dst := filepath.Join(dir, "deploy", "artifact.zip")
	if err := tr.Upload(context.Background(), src, dst); err != nil {
		t.Fatalf("Yükleme başarısız: %v", err)
	}

	data, err := tr.ReadFile(context.Background(), dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "içerik" {
		t.Errorf("okunan içerik hatalı: %q", data)
	}
}

func TestLocalTransportHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewLocalTransport()
	if err := tr.Upload(ctx, "a", "b"); err == nil {
		t.Error("iptal edilmiş context hata üretmeliydi")
	}
}

func TestNewSSHTransportRejectsUnreachableHost(t *testing.T) {
	host := template.Host{
		Name:    "test-host",
		Address: "127.0.0.1",
		User:    "testuser",
		Port:    1, // dinleyen servis yok
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := NewSSHTransport(ctx, host); err == nil {
		t.Error("ulaşılamayan sunucu için hata bekleniyordu")
	}
}
