package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/melih-ucgun/vigil/internal/consts"
	"github.com/melih-ucgun/vigil/internal/syncflow"
	"github.com/melih-ucgun/vigil/internal/template"
)

// queueSize, zamanlayıcıdan işçi havuzuna akan kuyruk kapasitesidir.
const queueSize = 64

// ErrorHandler, bir akışın ürettiği hatayı teslim alır. Executor hatada
// çökmez; sınıflandırma çağırana aittir.
type ErrorHandler func(err error)

// Executor, geciktirilmiş ve dedup edilen sync-flow kuyruğunun arka plan
// tüketicisidir. Her gönderim kendi dedup anahtarı için bir gecikme sayacı
// başlatır (ya da sıfırlar); süre dolunca akış sınırlı bir işçi havuzuna
// devredilir. dedup=true iken aynı anahtarla bekleyen akış, yenisiyle
// değiştirilir (last-write-wins): aynı kaynağın art arda kaydedilen
// dosyaları tek bir yüklemeye iner.
type Executor struct {
	ctx     context.Context
	logger  *slog.Logger
	workers int

	mu      sync.Mutex
	running bool
	pending map[template.ResourceID]*time.Timer
	queue   chan syncflow.SyncFlow
	handler ErrorHandler

	wg sync.WaitGroup
}

// New creates an executor. ctx bounds the in-flight flows; cancelling it
// aborts syncs that honour their context.
func New(ctx context.Context, logger *slog.Logger, workers int) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = consts.DefaultWorkerCount
	}
	return &Executor{
		ctx:     ctx,
		logger:  logger,
		workers: workers,
		pending: make(map[template.ResourceID]*time.Timer),
	}
}

// Execute, işçi havuzunu başlatır. Zaten çalışıyorsa etkisizdir.
func (e *Executor) Execute(handler ErrorHandler) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.handler = handler
	e.queue = make(chan syncflow.SyncFlow, queueSize)
	queue := e.queue
	e.mu.Unlock()

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(queue)
	}
	e.logger.Debug("sync executor başladı", "workers", e.workers)
}

// AddDelayedSyncFlow, akışı wait süresi sonunda çalışmak üzere kuyruklar.
// dedup=true ise aynı kaynağın bekleyen gönderimi yenisiyle değiştirilir.
func (e *Executor) AddDelayedSyncFlow(flow syncflow.SyncFlow, dedup bool, wait time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		e.logger.Debug("executor durmuş, akış düşürüldü", "resource", flow.ResourceID())
		return
	}

	key := flow.ResourceID()
	if dedup {
		if timer, ok := e.pending[key]; ok {
			timer.Stop()
		}
	}

	timer := time.AfterFunc(wait, func() { e.dispatch(key, flow) })
	if dedup {
		e.pending[key] = timer
	}
}

// Stop, yeni gönderimleri keser, bekleyen sayaçları iptal eder ve uçuştaki
// işler bitene kadar bloklar. Durdurulmuş executor Execute ile yeniden
// başlatılabilir.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	for key, timer := range e.pending {
		timer.Stop()
		delete(e.pending, key)
	}
	queue := e.queue
	e.queue = nil
	e.mu.Unlock()

	close(queue)
	e.wg.Wait()
	e.logger.Debug("sync executor durdu")
}

// dispatch, gecikme sayacı dolan akışı işçi kuyruğuna taşır.
func (e *Executor) dispatch(key template.ResourceID, flow syncflow.SyncFlow) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.pending, key)
	if !e.running {
		return
	}
	select {
	case e.queue <- flow:
	default:
		e.logger.Warn("sync kuyruğu dolu, akış düşürüldü", "resource", key)
	}
}

func (e *Executor) worker(queue chan syncflow.SyncFlow) {
	defer e.wg.Done()
	for flow := range queue {
		e.runFlow(flow)
	}
}

// runFlow, tek bir akışı uçtan uca çalıştırır. Hatalar ve panikler handler'a
// gider; executor çalışmaya devam eder.
func (e *Executor) runFlow(flow syncflow.SyncFlow) {
	defer func() {
		if r := recover(); r != nil {
			e.report(fmt.Errorf("sync akışı panikledi (%s): %v", flow.ResourceID(), r))
		}
	}()

	if err := flow.GatherResources(); err != nil {
		e.report(err)
		return
	}

	same, err := flow.CompareRemote()
	if err != nil {
		e.report(err)
		return
	}
	if same {
		e.logger.Debug("uzak durum güncel, sync atlandı", "resource", flow.ResourceID())
		return
	}

	if err := flow.Sync(e.ctx); err != nil {
		e.report(err)
		return
	}
	e.logger.Info("kaynak eşitlendi", "resource", flow.ResourceID())

	for _, dep := range flow.GatherDependencies() {
		e.AddDelayedSyncFlow(dep, true, 0)
	}
}

func (e *Executor) report(err error) {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}
