package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/melih-ucgun/vigil/internal/consts"
	"github.com/melih-ucgun/vigil/internal/executor"
	"github.com/melih-ucgun/vigil/internal/observer"
	"github.com/melih-ucgun/vigil/internal/pipeline"
	"github.com/melih-ucgun/vigil/internal/syncflow"
	"github.com/melih-ucgun/vigil/internal/template"
	"github.com/melih-ucgun/vigil/internal/trigger"
)

// syncState, sync izleyicisinin ana döngü durumudur.
type syncState int

const (
	stateIdle syncState = iota
	stateInfraPending
	stateInfraRunning
	stateInfraFailed
)

// SyncWatcher, derleme izleyicisinin üstüne uzak eşitlemeyi ekler: kod
// değişiklikleri tekil sync akışları olarak executor'a gider, şablon
// değişiklikleri tam bir infra sync (derle → paketle → dağıt) kuyruklar.
// Ana döngü sabit aralıkla yoklayan tek bir goroutine'dir; dosya sistemi
// callback'leri ve executor işçileri paylaşılan duruma yalnızca mutex
// altındaki kısa yollardan dokunur.
type SyncWatcher struct {
	Logger       *slog.Logger
	Loader       *template.Loader
	Builder      *pipeline.Builder
	Packager     *pipeline.Packager
	Deployer     *pipeline.Deployer
	FlowDeps     *syncflow.Deps
	TemplatePath string
	BaseDir      string
	Exclusions   *Exclusions
	PollInterval time.Duration
	FlowDelay    time.Duration
	Workers      int

	obs  *observer.Observer
	exec *executor.Executor

	mu          sync.Mutex
	state       syncState
	flowFactory *syncflow.Factory
	infraReason string
}

// Watch, sync döngüsünü çalıştırır ve ctx iptal edilene kadar döner.
// İlk iş her zaman bir infra sync'tir: izleme, dağıtılmış durumla eşitlenmiş
// bir modelin üzerinde başlar.
func (w *SyncWatcher) Watch(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = slog.Default()
	}
	if w.PollInterval <= 0 {
		w.PollInterval = consts.DefaultPollInterval
	}
	if w.FlowDelay <= 0 {
		w.FlowDelay = consts.DefaultFlowDelay
	}

	obs, err := observer.New(w.Logger)
	if err != nil {
		return err
	}
	w.obs = obs
	w.exec = executor.New(ctx, w.Logger, w.Workers)
	obs.Start()

	probe := newMtimeProbe(w.TemplatePath)
	w.queueInfraSync("ilk dağıtım")

	poll := time.NewTicker(w.PollInterval)
	defer poll.Stop()
	tick := 0

	for {
		select {
		case <-ctx.Done():
			// Sıralı kapanış: observer durur (olay akışı kesilir), sonra
			// executor uçuştaki akışları bitirene kadar beklenir.
			obs.Stop()
			w.exec.Stop()
			w.Logger.Info("sync izleyicisi durduruldu")
			return nil

		case <-poll.C:
			if reason, pending := w.takePendingInfra(); pending {
				w.runInfraSync(ctx, reason)
				probe.sync()
			}
			tick++
			if tick%consts.TemplatePollEveryNTicks == 0 && probe.changed() {
				w.queueInfraSync("şablonun değişiklik zamanı güncellendi")
			}
		}
	}
}

// queueInfraSync, bir sonraki döngü turunda çalışmak üzere infra sync
// işaretler. Zaten bekleyen bir sync varsa tekrar kuyruklanmaz.
func (w *SyncWatcher) queueInfraSync(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateInfraPending, stateInfraRunning:
		return
	}
	w.state = stateInfraPending
	w.infraReason = reason
	w.Logger.Info("infra sync kuyruklandı", "reason", reason)
}

// takePendingInfra, bekleyen infra sync'i devralır ve durumu çalışıyor'a
// çevirir.
func (w *SyncWatcher) takePendingInfra() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateInfraPending {
		return "", false
	}
	w.state = stateInfraRunning
	return w.infraReason, true
}

// runInfraSync, tam bir derle → paketle → dağıt turu yapar. Başarısızlıkta
// izleyici InfraFailed durumuna geçer: yalnızca taze bir şablon trigger'ı
// planlı kalır, böylece yazar şablonu düzeltince döngü kendini toparlar.
func (w *SyncWatcher) runInfraSync(ctx context.Context, reason string) {
	w.Logger.Info("infra sync başlıyor", "reason", reason)

	// Uçuştaki kod sync'leri bayat bir stack modeliyle yarışmasın diye
	// executor boşalana kadar beklenir, sonra tüm izlemeler kaldırılır.
	w.exec.Stop()
	w.obs.UnscheduleAll()

	if err := w.deployOnce(ctx); err != nil {
		w.Logger.Error("infra sync başarısız; şablon düzeltilene kadar bekleniyor", "error", err)
		w.enterFailed()
		return
	}

	if err := w.rearm(); err != nil {
		w.Logger.Error("izleme yeniden kurulamadı; şablon düzeltilene kadar bekleniyor", "error", err)
		w.enterFailed()
		return
	}

	w.mu.Lock()
	w.state = stateIdle
	w.mu.Unlock()
	w.Logger.Info("infra sync tamamlandı, izleme sürüyor")
}

// deployOnce, pipeline adımlarını sırayla çalıştırır. Her adım taze girdi
// okur; panikler hataya çevrilir.
func (w *SyncWatcher) deployOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("infra sync panikledi: %v", r)
		}
	}()

	steps := []struct {
		name string
		task pipeline.Task
	}{
		{"derleme", w.Builder},
		{"paketleme", w.Packager},
		{"dağıtım", w.Deployer},
	}
	for _, step := range steps {
		if err := step.task.SetUp(); err != nil {
			return fmt.Errorf("%s hazırlığı: %w", step.name, err)
		}
		if err := step.task.Run(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}

// rearm, taze stack snapshot'ı üzerine akış ve trigger fabrikalarını kurar,
// izlemeleri planlar ve executor'u yeniden başlatır.
func (w *SyncWatcher) rearm() error {
	stacks, err := w.Loader.Load(w.TemplatePath)
	if err != nil {
		return err
	}

	flowFactory := &syncflow.Factory{Stacks: stacks, BaseDir: w.BaseDir, Deps: w.FlowDeps}
	if err := flowFactory.LoadPhysicalIDMapping(); err != nil {
		return fmt.Errorf("fiziksel kimlik eşlemesi yüklenemedi: %w", err)
	}

	if err := w.scheduleTemplateTrigger(); err != nil {
		return err
	}
	triggerFactory := &trigger.Factory{Stacks: stacks, BaseDir: w.BaseDir, ExcludesFor: w.Exclusions.For}
	scheduleCodeTriggers(w.obs, triggerFactory, w.Logger, func(id template.ResourceID) trigger.OnChange {
		return func(fsnotify.Event) { w.onCodeChange(id) }
	})

	w.mu.Lock()
	w.flowFactory = flowFactory
	w.mu.Unlock()

	w.exec.Execute(w.handleFlowError)
	return nil
}

// enterFailed, izleyiciyi yalnızca şablon trigger'ı planlı kalacak şekilde
// InfraFailed durumuna alır.
func (w *SyncWatcher) enterFailed() {
	w.obs.UnscheduleAll()
	if err := w.scheduleTemplateTrigger(); err != nil {
		// Şablon bile izlenemiyorsa geriye mtime yoklaması kalır.
		w.Logger.Error("şablon izlemesi kurulamadı, mtime yoklamasına düşülüyor", "error", err)
	}
	w.mu.Lock()
	w.state = stateInfraFailed
	w.mu.Unlock()
}

func (w *SyncWatcher) scheduleTemplateTrigger() error {
	tmpl := trigger.NewTemplateTrigger(template.ResourceID{}, w.TemplatePath, func(fsnotify.Event) {
		w.onTemplateChange()
	})
	if _, err := w.obs.ScheduleAll(tmpl.PathHandlers()); err != nil {
		return fmt.Errorf("şablon izlemesi kurulamadı: %w", err)
	}
	return nil
}

// onTemplateChange, şablon düzenlemesini infra sync'e çevirir. InfraFailed
// durumundan tek çıkış budur.
func (w *SyncWatcher) onTemplateChange() {
	w.mu.Lock()
	if w.state == stateInfraFailed {
		w.state = stateIdle
	}
	w.mu.Unlock()
	w.queueInfraSync("şablon değişti")
}

// onCodeChange, kod değişikliğini tekil bir sync akışına çevirir. Bekleyen
// ya da çalışan bir infra sync varsa değişiklik düşürülür; o sync'in taze
// trigger'ları değişikliği zaten yakalar. Akışı olmayan tipler de düşer.
func (w *SyncWatcher) onCodeChange(id template.ResourceID) {
	w.mu.Lock()
	factory := w.flowFactory
	busy := w.state != stateIdle
	w.mu.Unlock()

	if busy || factory == nil {
		w.Logger.Debug("infra sync beklemede, kod değişikliği düşürüldü", "resource", id)
		return
	}
	flow := factory.CreateSyncFlow(id)
	if flow == nil {
		w.Logger.Debug("kaynağın hızlı sync yolu yok, değişiklik infra sync'e kaldı", "resource", id)
		return
	}
	w.exec.AddDelayedSyncFlow(flow, true, w.FlowDelay)
}

// handleFlowError, executor'dan gelen akış hatalarını sınıflandırır.
// Uzak durumun bayatladığını gösteren hatalar infra sync'e yükseltilir;
// diğer her şey loglanır ve kalan kaynakların sync'ini engellemez.
func (w *SyncWatcher) handleFlowError(err error) {
	var missing *syncflow.MissingPhysicalResourceError
	var stale *syncflow.InfraSyncRequiredError

	switch {
	case errors.As(err, &missing):
		w.Logger.Warn("dağıtılmış stack kaynağı içermiyor, infra sync gerekiyor", "error", err)
		w.queueInfraSync(err.Error())
	case errors.As(err, &stale):
		w.Logger.Warn("uzak durum varsayımları bayat, infra sync gerekiyor", "error", err)
		w.queueInfraSync(err.Error())
	default:
		w.Logger.Error("sync akışı başarısız", "error", err)
	}
}
