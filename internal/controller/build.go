package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/melih-ucgun/vigil/internal/consts"
	"github.com/melih-ucgun/vigil/internal/observer"
	"github.com/melih-ucgun/vigil/internal/pipeline"
	"github.com/melih-ucgun/vigil/internal/template"
	"github.com/melih-ucgun/vigil/internal/trigger"
)

// eventQueueSize, dosya sistemi callback'lerinden ana döngüye akan değişiklik
// olaylarının tampon boyutudur. Debounce zaten ardışık olayları tek derlemeye
// indirdiğinden taşan olayların düşmesi davranışı değiştirmez.
const eventQueueSize = 64

// changeEvent, bir trigger callback'inin ana döngüye bildirdiği değişikliktir.
type changeEvent struct {
	id         template.ResourceID
	isTemplate bool
}

// BuildWatcher, şablonu ve kaynak kod dizinlerini izler, değişiklikte yerel
// derlemeyi yeniden çalıştırır. Tüm paylaşılan durum (stack snapshot'ı,
// izleme kayıtları, debounce sayacı) tek bir olay döngüsü goroutine'ine
// aittir; callback'ler yalnızca kanala yazar.
type BuildWatcher struct {
	Logger       *slog.Logger
	Loader       *template.Loader
	Builder      *pipeline.Builder
	TemplatePath string
	BaseDir      string
	Exclusions   *Exclusions
	Debounce     time.Duration
	PollInterval time.Duration

	obs    *observer.Observer
	events chan changeEvent
	probe  *mtimeProbe
}

// Watch, izleme döngüsünü çalıştırır ve ctx iptal edilene kadar döner.
// İlk derleme koşulsuz yapılır; sonraki derlemeler değişiklik olaylarına
// bağlıdır. Derleme hataları loglanır, izleme hiçbir hatada sonlanmaz.
func (w *BuildWatcher) Watch(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = slog.Default()
	}
	if w.Debounce <= 0 {
		w.Debounce = consts.DefaultDebounce
	}
	if w.PollInterval <= 0 {
		w.PollInterval = consts.DefaultPollInterval
	}

	obs, err := observer.New(w.Logger)
	if err != nil {
		return err
	}
	w.obs = obs
	w.events = make(chan changeEvent, eventQueueSize)
	w.probe = newMtimeProbe(w.TemplatePath)
	obs.Start()

	// Başlangıçta şablon okunabilir olmak zorundadır; sonraki yeniden
	// yüklemeler hataya dayanıklıdır.
	if err := w.reload(); err != nil {
		obs.Stop()
		return fmt.Errorf("izleme başlatılamadı: %w", err)
	}

	w.Logger.Info("izleme başladı, ilk derleme çalıştırılıyor", "template", w.TemplatePath)
	w.runBuildCycle(ctx)

	// Debounce sayacı tek olay döngüsünün elindedir; durdurulmuş olarak
	// başlar ve her kod değişikliğinde yeniden kurulur.
	debounce := time.NewTimer(w.Debounce)
	stopTimer(debounce)
	pending := false

	poll := time.NewTicker(w.PollInterval)
	defer poll.Stop()
	tick := 0

	for {
		select {
		case <-ctx.Done():
			// Sıralı kapanış: önce observer (olay akışı kesilir), sonra
			// debounce sayacı, en son döngü çıkışı.
			obs.Stop()
			stopTimer(debounce)
			w.Logger.Info("izleme durduruldu")
			return nil

		case ev := <-w.events:
			if ev.isTemplate {
				// Şablon düzenlemesi nadir ve belirleyicidir; debounce
				// beklemez ve bekleyen kod debounce'unu iptal eder.
				stopTimer(debounce)
				pending = false
				w.Logger.Info("şablon değişti, yeniden derleniyor", "template", w.TemplatePath)
				w.runBuildCycle(ctx)
				continue
			}
			w.Logger.Debug("kod değişikliği", "resource", ev.id)
			pending = true
			stopTimer(debounce)
			debounce.Reset(w.Debounce)

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			w.runBuildCycle(ctx)

		case <-poll.C:
			tick++
			if tick%consts.TemplatePollEveryNTicks != 0 {
				continue
			}
			if w.probe.changed() {
				w.Logger.Info("şablonun değişiklik zamanı güncellendi, yeniden derleniyor", "template", w.TemplatePath)
				stopTimer(debounce)
				pending = false
				w.runBuildCycle(ctx)
			}
		}
	}
}

// runBuildCycle, bir derlemeyi çalıştırır ve ardından stack modelini sıfırdan
// yükleyip tüm trigger'ları yeniden kurar; biten derleme kaynak kümesini
// değiştirmiş olabilir.
func (w *BuildWatcher) runBuildCycle(ctx context.Context) {
	if err := w.buildOnce(ctx); err != nil {
		w.Logger.Error("derleme başarısız, izlemeye devam ediliyor", "error", err)
	} else {
		w.Logger.Info("derleme tamamlandı")
	}
	if err := w.reload(); err != nil {
		w.Logger.Error("şablon yeniden yüklenemedi, önceki izleme kayıtları korunuyor", "error", err)
	}
	// Olay yoluyla işlenen şablon değişikliği yoklamada tekrar tetiklenmesin.
	w.probe.sync()
}

// buildOnce, tek bir derleme denemesidir. Panikler de hataya çevrilir;
// izleyici hiçbir derleme hatasında çökmez.
func (w *BuildWatcher) buildOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("derleme panikledi: %v", r)
		}
	}()
	if err := w.Builder.SetUp(); err != nil {
		return err
	}
	return w.Builder.Run(ctx)
}

// reload, taze bir stack snapshot'ı yükler ve izleme kayıtlarını baştan
// kurar. Önceki neslin tüm kayıtları, yenileri planlanmadan önce iptal
// edilir; çift kayıt oluşmaz.
func (w *BuildWatcher) reload() error {
	stacks, err := w.Loader.Load(w.TemplatePath)
	if err != nil {
		return err
	}

	w.obs.UnscheduleAll()

	tmpl := trigger.NewTemplateTrigger(template.ResourceID{}, w.TemplatePath, func(fsnotify.Event) {
		w.submit(changeEvent{isTemplate: true})
	})
	if _, err := w.obs.ScheduleAll(tmpl.PathHandlers()); err != nil {
		return fmt.Errorf("şablon izlemesi kurulamadı: %w", err)
	}

	factory := &trigger.Factory{Stacks: stacks, BaseDir: w.BaseDir, ExcludesFor: w.Exclusions.For}
	scheduleCodeTriggers(w.obs, factory, w.Logger, func(id template.ResourceID) trigger.OnChange {
		return func(fsnotify.Event) { w.submit(changeEvent{id: id}) }
	})
	return nil
}

// submit, olayı ana döngüye bloklamadan iletir.
func (w *BuildWatcher) submit(ev changeEvent) {
	select {
	case w.events <- ev:
	default:
		w.Logger.Debug("olay kuyruğu dolu, değişiklik düşürüldü", "resource", ev.id)
	}
}

// stopTimer, sayacı durdurur ve tetiklenmişse kanalını boşaltır; Reset'in
// bayat bir tetiklenme teslim etmesini engeller.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
