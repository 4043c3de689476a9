package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/melih-ucgun/vigil/internal/template"
)

// recordingRunner, çalıştırılan komutları kaydeder; hiçbir süreç başlatmaz.
type recordingRunner struct {
	mu       sync.Mutex
	commands []string
}

func (r *recordingRunner) Run(cmd *exec.Cmd) error {
	return r.record(cmd)
}

func (r *recordingRunner) CombinedOutput(cmd *exec.Cmd) ([]byte, error) {
	return nil, r.record(cmd)
}

func (r *recordingRunner) record(cmd *exec.Cmd) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, strings.Join(cmd.Args, " "))
	return nil
}

func swapRunner(t *testing.T, r Runner) {
	t.Helper()
	old := CommandRunner
	CommandRunner = r
	t.Cleanup(func() { CommandRunner = old })
}

func functionResource(name, codeDir, buildCmd string) *template.Resource {
	params := map[string]interface{}{"codeDir": codeDir}
	if buildCmd != "" {
		params["build"] = buildCmd
	}
	return &template.Resource{
		ID:     template.ResourceID{Name: name},
		Type:   template.TypeFunction,
		Params: params,
	}
}

func TestBuildResourceDefaultCopiesTree(t *testing.T) {
	baseDir := t.TempDir()
	src := filepath.Join(baseDir, "src")
	if err := os.MkdirAll(filepath.Join(src, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "app.py"), []byte("pass"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "node_modules", "dep.js"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := &Builder{BaseDir: baseDir, BuildDir: filepath.Join(baseDir, ".vigil", "build")}
	dest, err := b.BuildResource(context.Background(), functionResource("fn", "src", ""))
	if err != nil {
		t.Fatalf("Derleme başarısız: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "app.py")); err != nil {
		t.Error("kaynak dosya build çıktısına kopyalanmadı")
	}
	if _, err := os.Stat(filepath.Join(dest, "node_modules")); !os.IsNotExist(err) {
		t.Error("dışlanan dizin build çıktısına kopyalanmamalıydı")
	}
}

func TestBuildResourceRunsCustomCommand(t *testing.T) {
	runner := &recordingRunner{}
	swapRunner(t, runner)

	baseDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(baseDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}

	b := &Builder{BaseDir: baseDir, BuildDir: filepath.Join(baseDir, ".vigil", "build")}
	if _, err := b.BuildResource(context.Background(), functionResource("fn", "src", "make dist")); err != nil {
		t.Fatalf("Derleme başarısız: %v", err)
	}

	if len(runner.commands) != 1 || !strings.Contains(runner.commands[0], "make dist") {
		t.Errorf("build komutu çalıştırılmadı: %v", runner.commands)
	}
}

func TestBuildResourceReplacesPreviousOutput(t *testing.T) {
	baseDir := t.TempDir()
	src := filepath.Join(baseDir, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "yeni.py"), []byte("pass"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := &Builder{BaseDir: baseDir, BuildDir: filepath.Join(baseDir, ".vigil", "build")}
	res := functionResource("fn", "src", "")

	// Önceki derlemeden kalan bayat çıktı temizlenmeli.
	stale := filepath.Join(b.BuildDir, "fn", "eski.py")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest, err := b.BuildResource(context.Background(), res)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "eski.py")); !os.IsNotExist(err) {
		t.Error("bayat build çıktısı temizlenmedi")
	}
}

func TestSanitizeID(t *testing.T) {
	id := template.ResourceID{StackPath: "alt/stack", Name: "fn"}
	if got := SanitizeID(id); got != "alt__stack__fn" {
		t.Errorf("SanitizeID hatalı: %s", got)
	}
}

func TestHashDirIsDeterministicAndContentSensitive(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("pass"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := HashDir(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := HashDir(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("aynı içerik aynı özeti vermeli")
	}

	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("return"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := HashDir(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if changed == first {
		t.Error("içerik değişince özet değişmeli")
	}
}

func TestHashDirHonoursExcludes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("pass"), 0o644); err != nil {
		t.Fatal(err)
	}
	base, err := HashDir(dir, []string{"*.pyc"})
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "a.pyc"), []byte("derlenmiş"), 0o644); err != nil {
		t.Fatal(err)
	}
	withExcluded, err := HashDir(dir, []string{"*.pyc"})
	if err != nil {
		t.Fatal(err)
	}
	if base != withExcluded {
		t.Error("dışlanan dosya özeti etkilememeli")
	}
}
