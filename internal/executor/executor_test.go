package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/melih-ucgun/vigil/internal/syncflow"
	"github.com/melih-ucgun/vigil/internal/template"
)

// fakeFlow, sayaçlı bir SyncFlow taklididir.
type fakeFlow struct {
	id template.ResourceID

	mu        sync.Mutex
	gathered  int
	synced    int
	same      bool
	gatherErr error
	syncErr   error
	deps      []syncflow.SyncFlow

	done chan struct{}
}

func newFakeFlow(name string) *fakeFlow {
	return &fakeFlow{
		id:   template.ResourceID{Name: name},
		done: make(chan struct{}, 8),
	}
}

func (f *fakeFlow) ResourceID() template.ResourceID { return f.id }

func (f *fakeFlow) GatherResources() error {
	f.mu.Lock()
	f.gathered++
	f.mu.Unlock()
	return f.gatherErr
}

func (f *fakeFlow) CompareRemote() (bool, error) { return f.same, nil }

func (f *fakeFlow) Sync(context.Context) error {
	f.mu.Lock()
	f.synced++
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.syncErr
}

func (f *fakeFlow) GatherDependencies() []syncflow.SyncFlow { return f.deps }

func (f *fakeFlow) syncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.synced
}

func waitDone(t *testing.T, f *fakeFlow) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(3 * time.Second):
		t.Fatalf("akış zamanında çalışmadı: %s", f.id)
	}
}

func TestDedupLastWriteWins(t *testing.T) {
	exec := New(context.Background(), nil, 2)
	exec.Execute(nil)
	defer exec.Stop()

	first := newFakeFlow("fn")
	second := newFakeFlow("fn")

	exec.AddDelayedSyncFlow(first, true, 80*time.Millisecond)
	exec.AddDelayedSyncFlow(second, true, 80*time.Millisecond)

	waitDone(t, second)
	time.Sleep(200 * time.Millisecond)

	if first.syncCount() != 0 {
		t.Error("değiştirilen gönderim çalışmamalıydı")
	}
	if second.syncCount() != 1 {
		t.Errorf("son gönderim tam bir kez çalışmalıydı: %d", second.syncCount())
	}
}

func TestNoDedupRunsBoth(t *testing.T) {
	exec := New(context.Background(), nil, 2)
	exec.Execute(nil)
	defer exec.Stop()

	a := newFakeFlow("a")
	b := newFakeFlow("a")

	exec.AddDelayedSyncFlow(a, false, 10*time.Millisecond)
	exec.AddDelayedSyncFlow(b, false, 10*time.Millisecond)

	waitDone(t, a)
	waitDone(t, b)
}

func TestStopDrainsInFlight(t *testing.T) {
	exec := New(context.Background(), nil, 1)
	exec.Execute(nil)

	flow := newFakeFlow("yavaş")
	exec.AddDelayedSyncFlow(flow, true, 0)
	waitDone(t, flow)

	// Stop, uçuştaki iş bittikten sonra döner ve yeni gönderimleri düşürür.
	exec.Stop()

	dropped := newFakeFlow("geç")
	exec.AddDelayedSyncFlow(dropped, true, 0)
	time.Sleep(150 * time.Millisecond)
	if dropped.syncCount() != 0 {
		t.Error("durmuş executor'a gönderim çalışmamalıydı")
	}
}

func TestErrorHandlerReceivesFlowError(t *testing.T) {
	exec := New(context.Background(), nil, 1)

	errs := make(chan error, 1)
	exec.Execute(func(err error) { errs <- err })
	defer exec.Stop()

	flow := newFakeFlow("bozuk")
	sentinelErr := errors.New("sync patladı")
	flow.syncErr = sentinelErr
	exec.AddDelayedSyncFlow(flow, true, 0)

	select {
	case err := <-errs:
		if !errors.Is(err, sentinelErr) {
			t.Errorf("beklenen hata gelmedi: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("hata handler'a ulaşmadı")
	}
}

func TestSameRemoteSkipsSync(t *testing.T) {
	exec := New(context.Background(), nil, 1)
	exec.Execute(nil)
	defer exec.Stop()

	flow := newFakeFlow("güncel")
	flow.same = true
	exec.AddDelayedSyncFlow(flow, true, 0)

	time.Sleep(200 * time.Millisecond)
	if flow.syncCount() != 0 {
		t.Error("uzak durum güncelken Sync çağrılmamalıydı")
	}
}

func TestDependenciesAreQueued(t *testing.T) {
	exec := New(context.Background(), nil, 2)
	exec.Execute(nil)
	defer exec.Stop()

	dep := newFakeFlow("bağımlı-fn")
	flow := newFakeFlow("katman")
	flow.deps = []syncflow.SyncFlow{dep}

	exec.AddDelayedSyncFlow(flow, true, 0)
	waitDone(t, flow)
	waitDone(t, dep)
}

func TestRestartAfterStop(t *testing.T) {
	exec := New(context.Background(), nil, 1)
	exec.Execute(nil)
	exec.Stop()

	exec.Execute(nil)
	defer exec.Stop()

	flow := newFakeFlow("tekrar")
	exec.AddDelayedSyncFlow(flow, true, 0)
	waitDone(t, flow)
}
