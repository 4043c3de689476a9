package controller

import (
	"log/slog"
	"os"
	"time"

	"github.com/melih-ucgun/vigil/internal/observer"
	"github.com/melih-ucgun/vigil/internal/template"
	"github.com/melih-ucgun/vigil/internal/trigger"
)

// scheduleCodeTriggers, stack modelindeki her kaynak için trigger kurup
// observer'a planlar. Tek kaynağın trigger hatası loglanır ve o kaynak
// atlanır; kalanlar izlenmeye devam eder. Desteklenmeyen tipler sessizce
// geçilir.
func scheduleCodeTriggers(obs *observer.Observer, factory *trigger.Factory, logger *slog.Logger, onChange func(template.ResourceID) trigger.OnChange) {
	for _, id := range template.AllResourceIDs(factory.Stacks) {
		trg, err := factory.CreateTrigger(id, onChange(id))
		if err != nil {
			logger.Warn("kaynak izlenemiyor, atlanıyor", "resource", id, "error", err)
			continue
		}
		if trg == nil {
			continue
		}
		if _, err := obs.ScheduleAll(trg.PathHandlers()); err != nil {
			logger.Warn("kaynağın izleme kayıtları planlanamadı", "resource", id, "error", err)
		}
	}
}

// mtimeProbe, şablon dosyasının değişiklik zamanını düşük frekansla
// yoklar. Dosya bildirimi güvenilmez olan dosya sistemleri ve dosyayı
// kopyala-taşı ile kaydeden editörler için emniyet ağıdır.
type mtimeProbe struct {
	path string
	last time.Time
}

func newMtimeProbe(path string) *mtimeProbe {
	p := &mtimeProbe{path: path}
	if info, err := os.Stat(path); err == nil {
		p.last = info.ModTime()
	}
	return p
}

// sync, son görülen mtime'ı dosyanın güncel haline eşitler. Olay yoluyla
// işlenmiş bir değişikliğin yoklamada ikinci kez tetiklenmesini önler.
func (p *mtimeProbe) sync() {
	if info, err := os.Stat(p.path); err == nil {
		p.last = info.ModTime()
	}
}

// changed, son yoklamadan bu yana mtime'ın değişip değişmediğini söyler.
func (p *mtimeProbe) changed() bool {
	info, err := os.Stat(p.path)
	if err != nil {
		return false
	}
	mod := info.ModTime()
	if p.last.IsZero() {
		p.last = mod
		return false
	}
	if mod.Equal(p.last) {
		return false
	}
	p.last = mod
	return true
}
