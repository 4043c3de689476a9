package trigger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/melih-ucgun/vigil/internal/template"
)

func testStacks(t *testing.T, baseDir string) []*template.Stack {
	t.Helper()
	for _, dir := range []string{"src", "layer-içerik"} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	root := &template.Stack{
		TemplatePath: filepath.Join(baseDir, "vigil.yaml"),
		Resources: []*template.Resource{
			{
				ID:     template.ResourceID{Name: "fn"},
				Type:   template.TypeFunction,
				Params: map[string]interface{}{"codeDir": "src"},
			},
			{
				ID:     template.ResourceID{Name: "katman"},
				Type:   template.TypeLayer,
				Params: map[string]interface{}{"contentDir": "layer-içerik"},
			},
			{
				ID:     template.ResourceID{Name: "eksik"},
				Type:   template.TypeFunction,
				Params: map[string]interface{}{},
			},
			{
				ID:     template.ResourceID{Name: "bilinmeyen"},
				Type:   "queue",
				Params: map[string]interface{}{},
			},
		},
	}
	return []*template.Stack{root}
}

func noopChange(fsnotify.Event) {}

func TestCreateTriggerForFunction(t *testing.T) {
	baseDir := t.TempDir()
	factory := &Factory{Stacks: testStacks(t, baseDir), BaseDir: baseDir}

	trg, err := factory.CreateTrigger(template.ResourceID{Name: "fn"}, noopChange)
	if err != nil {
		t.Fatalf("Trigger kurulamadı: %v", err)
	}
	handlers := trg.PathHandlers()
	if len(handlers) != 1 {
		t.Fatalf("1 handler bekleniyordu, %d bulundu", len(handlers))
	}
	h := handlers[0]
	if !h.Recursive || !h.StableFolder {
		t.Error("kod dizini recursive ve stable-folder izlenmeli")
	}
	if h.Path != filepath.Join(baseDir, "src") {
		t.Errorf("izlenen yol hatalı: %s", h.Path)
	}
}

func TestCreateTriggerUnknownTypeIsSkipped(t *testing.T) {
	baseDir := t.TempDir()
	factory := &Factory{Stacks: testStacks(t, baseDir), BaseDir: baseDir}

	trg, err := factory.CreateTrigger(template.ResourceID{Name: "bilinmeyen"}, noopChange)
	if err != nil {
		t.Fatalf("bilinmeyen tip hata üretmemeli: %v", err)
	}
	if trg != nil {
		t.Error("bilinmeyen tip için nil trigger bekleniyordu")
	}
}

func TestCreateTriggerMissingResource(t *testing.T) {
	baseDir := t.TempDir()
	factory := &Factory{Stacks: testStacks(t, baseDir), BaseDir: baseDir}

	_, err := factory.CreateTrigger(template.ResourceID{Name: "yok"}, noopChange)
	var notFound *template.ResourceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("ResourceNotFoundError bekleniyordu: %v", err)
	}
}

func TestCreateTriggerMissingCodeDir(t *testing.T) {
	baseDir := t.TempDir()
	factory := &Factory{Stacks: testStacks(t, baseDir), BaseDir: baseDir}

	_, err := factory.CreateTrigger(template.ResourceID{Name: "eksik"}, noopChange)
	var missing *MissingCodeDirError
	if !errors.As(err, &missing) {
		t.Fatalf("MissingCodeDirError bekleniyordu: %v", err)
	}
}

// Tek kaynağın trigger hatası diğerlerinin kurulabilirliğini etkilemez;
// factory çağrı başına karar verir.
func TestTriggerFailureIsolation(t *testing.T) {
	baseDir := t.TempDir()
	factory := &Factory{Stacks: testStacks(t, baseDir), BaseDir: baseDir}

	if _, err := factory.CreateTrigger(template.ResourceID{Name: "eksik"}, noopChange); err == nil {
		t.Fatal("eksik kod dizini için hata bekleniyordu")
	}

	built := 0
	for _, name := range []string{"fn", "katman"} {
		trg, err := factory.CreateTrigger(template.ResourceID{Name: name}, noopChange)
		if err != nil || trg == nil {
			t.Errorf("%s için trigger kurulamadı: %v", name, err)
			continue
		}
		built++
	}
	if built != 2 {
		t.Errorf("diğer kaynaklar trigger almalıydı: %d/2", built)
	}
}

func TestExtraExcludesPropagate(t *testing.T) {
	baseDir := t.TempDir()
	factory := &Factory{
		Stacks:  testStacks(t, baseDir),
		BaseDir: baseDir,
		ExcludesFor: func(template.ResourceID) []string {
			return []string{".git"}
		},
	}

	trg, err := factory.CreateTrigger(template.ResourceID{Name: "fn"}, noopChange, "*.tmp")
	if err != nil {
		t.Fatal(err)
	}
	excludes := trg.PathHandlers()[0].Excludes
	want := map[string]bool{".git": false, "*.tmp": false}
	for _, p := range excludes {
		if _, ok := want[p]; ok {
			want[p] = true
		}
	}
	for p, seen := range want {
		if !seen {
			t.Errorf("dışlama deseni taşınmadı: %s", p)
		}
	}
}
