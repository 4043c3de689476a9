package syncflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/melih-ucgun/vigil/internal/pipeline"
	"github.com/melih-ucgun/vigil/internal/state"
	"github.com/melih-ucgun/vigil/internal/template"
	"github.com/melih-ucgun/vigil/internal/transport"
)

func testFactory(t *testing.T) (*Factory, *transport.MockTransport, *state.Manager) {
	t.Helper()
	baseDir := t.TempDir()
	for _, dir := range []string{"src", "layer"} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(baseDir, dir, "f.py"), []byte("pass"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	stacks := []*template.Stack{{
		Resources: []*template.Resource{
			{
				ID:     template.ResourceID{Name: "fn"},
				Type:   template.TypeFunction,
				Params: map[string]interface{}{"codeDir": "src", "layers": []interface{}{"katman"}},
			},
			{
				ID:     template.ResourceID{Name: "imaj-fn"},
				Type:   template.TypeFunction,
				Params: map[string]interface{}{"packaging": "image", "context": "src"},
			},
			{
				ID:     template.ResourceID{Name: "katman"},
				Type:   template.TypeLayer,
				Params: map[string]interface{}{"contentDir": "layer"},
			},
			{
				ID:     template.ResourceID{Name: "api"},
				Type:   template.TypeAPI,
				Params: map[string]interface{}{"definition": "api.yaml"},
			},
		},
	}}

	mock := transport.NewMockTransport()
	mgr, err := state.NewManager(filepath.Join(baseDir, ".vigil", "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	factory := &Factory{
		Stacks:  stacks,
		BaseDir: baseDir,
		Deps: &Deps{
			Transport: mock,
			State:     mgr,
		},
	}
	return factory, mock, mgr
}

func TestCreateSyncFlowPerType(t *testing.T) {
	factory, _, _ := testFactory(t)

	cases := []struct {
		name     string
		wantFlow bool
	}{
		{"fn", true},
		{"katman", true},
		{"imaj-fn", false}, // imaj dağıtımı registry ister, hızlı yol yok
		{"api", false},
		{"yok", false},
	}
	for _, c := range cases {
		flow := factory.CreateSyncFlow(template.ResourceID{Name: c.name})
		if (flow != nil) != c.wantFlow {
			t.Errorf("%s: akış beklentisi %v, alınan %v", c.name, c.wantFlow, flow != nil)
		}
	}
}

func TestLayerDependentsAreFunctionsUsingIt(t *testing.T) {
	factory, _, _ := testFactory(t)

	flow := factory.CreateSyncFlow(template.ResourceID{Name: "katman"})
	if flow == nil {
		t.Fatal("katman için akış bekleniyordu")
	}
	deps := flow.GatherDependencies()
	if len(deps) != 1 {
		t.Fatalf("1 bağımlı akış bekleniyordu: %d", len(deps))
	}
	if deps[0].ResourceID() != (template.ResourceID{Name: "fn"}) {
		t.Errorf("bağımlı kaynak hatalı: %v", deps[0].ResourceID())
	}
}

func TestCompareRemoteMissingPhysicalResource(t *testing.T) {
	factory, _, _ := testFactory(t)

	flow := factory.CreateSyncFlow(template.ResourceID{Name: "fn"})
	if err := flow.GatherResources(); err != nil {
		t.Fatal(err)
	}

	_, err := flow.CompareRemote()
	var missing *MissingPhysicalResourceError
	if !errors.As(err, &missing) {
		t.Fatalf("MissingPhysicalResourceError bekleniyordu: %v", err)
	}
}

func TestCompareRemoteStaleHashFileRequiresInfraSync(t *testing.T) {
	factory, _, mgr := testFactory(t)
	if err := mgr.RecordResource("fn", "/srv/app/fn.zip", "eski"); err != nil {
		t.Fatal(err)
	}
	// Uzak tarafta .sha256 dosyası yok: varsayımlar bayat.

	flow := factory.CreateSyncFlow(template.ResourceID{Name: "fn"})
	if err := flow.GatherResources(); err != nil {
		t.Fatal(err)
	}

	_, err := flow.CompareRemote()
	var stale *InfraSyncRequiredError
	if !errors.As(err, &stale) {
		t.Fatalf("InfraSyncRequiredError bekleniyordu: %v", err)
	}
}

func TestCompareRemoteMatchingHashSkipsSync(t *testing.T) {
	factory, mock, mgr := testFactory(t)
	if err := mgr.RecordResource("fn", "/srv/app/fn.zip", "x"); err != nil {
		t.Fatal(err)
	}

	localHash, err := pipeline.HashDir(filepath.Join(factory.BaseDir, "src"), nil)
	if err != nil {
		t.Fatal(err)
	}
	mock.Files["/srv/app/fn.zip.sha256"] = []byte(localHash + "\n")

	flow := factory.CreateSyncFlow(template.ResourceID{Name: "fn"})
	if err := flow.GatherResources(); err != nil {
		t.Fatal(err)
	}

	same, err := flow.CompareRemote()
	if err != nil {
		t.Fatal(err)
	}
	if !same {
		t.Error("özetler eşitken same=true bekleniyordu")
	}
}
