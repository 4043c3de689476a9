package controller

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/melih-ucgun/vigil/internal/pipeline"
	"github.com/melih-ucgun/vigil/internal/template"
)

// countingRunner, derleme komutlarını saymakla yetinir; süreç başlatmaz.
type countingRunner struct {
	mu    sync.Mutex
	count int
}

func (r *countingRunner) Run(*exec.Cmd) error { return r.inc() }

func (r *countingRunner) CombinedOutput(*exec.Cmd) ([]byte, error) { return nil, r.inc() }

func (r *countingRunner) inc() error {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
	return nil
}

func (r *countingRunner) builds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// waitBuilds, derleme sayısı hedefe ulaşana kadar bekler.
func waitBuilds(t *testing.T, runner *countingRunner, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if runner.builds() >= want {
			if got := runner.builds(); got > want {
				t.Fatalf("fazla derleme çalıştı: %d > %d", got, want)
			}
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("derleme sayısı %d'e ulaşmadı: %d", want, runner.builds())
}

// assertNoMoreBuilds, verilen pencere boyunca yeni derleme olmadığını doğrular.
func assertNoMoreBuilds(t *testing.T, runner *countingRunner, want int, window time.Duration) {
	t.Helper()
	time.Sleep(window)
	if got := runner.builds(); got != want {
		t.Fatalf("beklenmeyen ek derleme: %d != %d", got, want)
	}
}

func startBuildWatcher(t *testing.T, baseDir string, debounce, poll time.Duration) (*countingRunner, string) {
	t.Helper()

	src := filepath.Join(baseDir, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	templatePath := filepath.Join(baseDir, "vigil.yaml")
	writeTemplateFile(t, templatePath, "app.handler")

	runner := &countingRunner{}
	oldRunner := pipeline.CommandRunner
	pipeline.CommandRunner = runner
	t.Cleanup(func() { pipeline.CommandRunner = oldRunner })

	logger := slog.Default()
	loader := &template.Loader{BaseDir: baseDir}
	buildDir := filepath.Join(baseDir, ".vigil", "build")
	watcher := &BuildWatcher{
		Logger: logger,
		Loader: loader,
		Builder: &pipeline.Builder{
			Logger:       logger,
			Loader:       loader,
			TemplatePath: templatePath,
			BaseDir:      baseDir,
			BuildDir:     buildDir,
		},
		TemplatePath: templatePath,
		BaseDir:      baseDir,
		Exclusions:   NewExclusions(logger, baseDir, buildDir, "", false, nil),
		Debounce:     debounce,
		PollInterval: poll,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := watcher.Watch(ctx); err != nil {
			t.Errorf("izleyici hata döndü: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return runner, templatePath
}

func writeTemplateFile(t *testing.T, path, handler string) {
	t.Helper()
	content := "resources:\n" +
		"  - name: fn\n" +
		"    type: function\n" +
		"    params:\n" +
		"      codeDir: src\n" +
		"      build: make dist\n" +
		"      handler: " + handler + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(time.Now().String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildWatcherDebouncesCodeChanges(t *testing.T) {
	baseDir := t.TempDir()
	runner, _ := startBuildWatcher(t, baseDir, 300*time.Millisecond, time.Second)

	// İlk derleme koşulsuz çalışır.
	waitBuilds(t, runner, 1)

	// Aynı pencere içindeki art arda kayıtlar tek derlemeye iner.
	appFile := filepath.Join(baseDir, "src", "app.py")
	for i := 0; i < 3; i++ {
		touch(t, appFile)
		time.Sleep(30 * time.Millisecond)
	}

	waitBuilds(t, runner, 2)
	assertNoMoreBuilds(t, runner, 2, 700*time.Millisecond)
}

func TestBuildWatcherTemplateChangeBypassesDebounce(t *testing.T) {
	baseDir := t.TempDir()
	runner, templatePath := startBuildWatcher(t, baseDir, 2*time.Second, time.Second)

	waitBuilds(t, runner, 1)

	// Yapısal şablon değişikliği debounce beklemeden derleme başlatır;
	// 2 saniyelik debounce penceresinden çok önce tamamlanmalıdır.
	writeTemplateFile(t, templatePath, "app.handler_v2")
	waitBuilds(t, runner, 2)
}

// Şablon değişikliği bekleyen kod debounce'unu iptal eder: sonuç tek bir
// tam derlemedir, ayrıca bir kod derlemesi çalışmaz.
func TestTemplateChangePreemptsPendingCodeDebounce(t *testing.T) {
	baseDir := t.TempDir()
	runner, templatePath := startBuildWatcher(t, baseDir, 600*time.Millisecond, time.Second)

	waitBuilds(t, runner, 1)

	touch(t, filepath.Join(baseDir, "src", "app.py"))
	time.Sleep(100 * time.Millisecond)
	writeTemplateFile(t, templatePath, "app.handler_v3")

	waitBuilds(t, runner, 2)
	assertNoMoreBuilds(t, runner, 2, time.Second)
}

// Her derleme sonrası model sıfırdan yüklenir ve trigger'lar yeniden
// kurulur; art arda yeniden yüklemeler çift kayıt bırakmaz — tek dokunuş
// yine tek derleme üretir.
func TestReloadsLeaveNoDuplicateTriggers(t *testing.T) {
	baseDir := t.TempDir()
	runner, templatePath := startBuildWatcher(t, baseDir, 300*time.Millisecond, time.Second)

	waitBuilds(t, runner, 1)

	writeTemplateFile(t, templatePath, "app.handler_v2")
	waitBuilds(t, runner, 2)
	writeTemplateFile(t, templatePath, "app.handler_v3")
	waitBuilds(t, runner, 3)

	touch(t, filepath.Join(baseDir, "src", "app.py"))
	waitBuilds(t, runner, 4)
	assertNoMoreBuilds(t, runner, 4, 700*time.Millisecond)
}

// Dosya bildirimi gelmese bile mtime yoklaması şablon değişikliğini yakalar.
// Chtimes içerik değiştirmeden yalnızca mtime günceller; olay yolundaki
// değişiklik doğrulayıcısı bunu elerken yoklama tetikler.
func TestTemplateMtimePollFallback(t *testing.T) {
	baseDir := t.TempDir()
	runner, templatePath := startBuildWatcher(t, baseDir, 300*time.Millisecond, 100*time.Millisecond)

	waitBuilds(t, runner, 1)

	future := time.Now().Add(3 * time.Second)
	if err := os.Chtimes(templatePath, future, future); err != nil {
		t.Fatal(err)
	}
	waitBuilds(t, runner, 2)
}
