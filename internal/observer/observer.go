package observer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Observer, fsnotify üzerinde ince bir katmandır: PathHandler kayıtlarını
// planlar, olayları doğru kayda yönlendirir ve recursive / stable-folder
// semantiğini sağlar. Tek bir fsnotify watcher'ı paylaşılır; aynı dizini
// izleyen kayıtlar için referans sayacı tutulur.
type Observer struct {
	logger *slog.Logger

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu     sync.Mutex
	regs   map[WatchHandle]*registration
	refs   map[string]int // dizin -> fsnotify Add referans sayısı
	nextID WatchHandle
}

// registration, planlanmış tek bir PathHandler'ın canlı durumudur.
type registration struct {
	handler PathHandler
	target  string          // mutlak hedef yol
	parent  string          // stable-folder modunda izlenen üst dizin
	isDir   bool            // hedef planlandığı anda dizin miydi
	dirs    map[string]bool // bu kaydın referans aldığı dizinler
	// childActive, stable-folder modunda hedefin şu an izlenip izlenmediğidir.
	childActive bool
}

// New creates an Observer. Call Start before scheduling handlers.
func New(logger *slog.Logger) (*Observer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify watcher oluşturulamadı: %w", err)
	}
	return &Observer{
		logger: logger,
		fsw:    fsw,
		done:   make(chan struct{}),
		regs:   make(map[WatchHandle]*registration),
		refs:   make(map[string]int),
	}, nil
}

// Start, olay dağıtım döngüsünü başlatır.
func (o *Observer) Start() {
	o.wg.Add(1)
	go o.loop()
}

// Stop, dağıtımı durdurur ve döngü çıkana kadar bekler. Stop döndükten
// sonra hiçbir handler çağrılmaz. Birden fazla kez çağrılabilir.
func (o *Observer) Stop() {
	o.stopOnce.Do(func() {
		close(o.done)
		_ = o.fsw.Close()
	})
	o.wg.Wait()
}

// Schedule, bir PathHandler'ı planlar ve iptal için bir handle döner.
func (o *Observer) Schedule(h PathHandler) (WatchHandle, error) {
	target, err := filepath.Abs(h.Path)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	reg := &registration{
		handler: h,
		target:  target,
		dirs:    make(map[string]bool),
	}

	switch {
	case h.StableFolder:
		// Hedef dizin doğrudan izlenmez; üst dizin izlenir ve hedef var
		// olduğu anda (yeniden) devreye alınır. Rename/delete/recreate
		// geçişlerinde bayat fsnotify handle sorununu böyle aşıyoruz.
		reg.parent = filepath.Dir(target)
		if err := o.addDir(reg, reg.parent); err != nil {
			return 0, err
		}
		if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
			if err := o.addTree(reg, target); err != nil {
				o.releaseDirs(reg)
				return 0, err
			}
			reg.childActive = true
		}
	default:
		info, statErr := os.Stat(target)
		if statErr != nil {
			return 0, fmt.Errorf("izlenecek yol bulunamadı (%s): %w", target, statErr)
		}
		reg.isDir = info.IsDir()
		if reg.isDir {
			if h.Recursive {
				if err := o.addTree(reg, target); err != nil {
					o.releaseDirs(reg)
					return 0, err
				}
			} else if err := o.addDir(reg, target); err != nil {
				return 0, err
			}
		} else {
			// Tek dosya: atomic-save (rename-over) kayıtlarını kaçırmamak
			// için dosyanın kendisi değil, bulunduğu dizin izlenir.
			if err := o.addDir(reg, filepath.Dir(target)); err != nil {
				return 0, err
			}
		}
	}

	o.regs[o.nextID] = reg
	o.logger.Debug("izleme planlandı", "path", target, "recursive", h.Recursive, "stable", h.StableFolder)
	return o.nextID, nil
}

// ScheduleAll, verilen handler'ların tamamını planlar. Herhangi biri
// başarısız olursa o ana kadar planlananlar geri alınır.
func (o *Observer) ScheduleAll(handlers []PathHandler) ([]WatchHandle, error) {
	handles := make([]WatchHandle, 0, len(handlers))
	for _, h := range handlers {
		handle, err := o.Schedule(h)
		if err != nil {
			for _, done := range handles {
				o.Unschedule(done)
			}
			return nil, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

// Unschedule, bir kaydı iptal eder. Bilinmeyen handle sessizce yok sayılır.
func (o *Observer) Unschedule(handle WatchHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()

	reg, ok := o.regs[handle]
	if !ok {
		return
	}
	o.releaseDirs(reg)
	delete(o.regs, handle)
}

// UnscheduleAll, tüm kayıtları iptal eder.
func (o *Observer) UnscheduleAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for handle, reg := range o.regs {
		o.releaseDirs(reg)
		delete(o.regs, handle)
	}
}

// addTree, bir dizini ve dışlanmamış tüm alt dizinlerini kayda ekler.
func (o *Observer) addTree(reg *registration, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// İzlemeye başlarken kaybolan girdiler (yarış) atlanır.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && Excluded(rel, reg.handler.Excludes) {
			return filepath.SkipDir
		}
		return o.addDir(reg, path)
	})
}

func (o *Observer) addDir(reg *registration, dir string) error {
	if reg.dirs[dir] {
		return nil
	}
	o.refs[dir]++
	if o.refs[dir] == 1 {
		if err := o.fsw.Add(dir); err != nil {
			o.refs[dir]--
			if o.refs[dir] == 0 {
				delete(o.refs, dir)
			}
			return fmt.Errorf("izleme eklenemedi (%s): %w", dir, err)
		}
	}
	reg.dirs[dir] = true
	return nil
}

// releaseDirs, kaydın tuttuğu tüm dizin referanslarını bırakır.
func (o *Observer) releaseDirs(reg *registration) {
	for dir := range reg.dirs {
		delete(reg.dirs, dir)
		o.refs[dir]--
		if o.refs[dir] <= 0 {
			delete(o.refs, dir)
			// Silinen dizinler fsnotify tarafından zaten düşürülmüş olabilir.
			_ = o.fsw.Remove(dir)
		}
	}
}

// releaseSubtree, stable-folder hedefinin altındaki referansları bırakır,
// üst dizin izlemesini korur.
func (o *Observer) releaseSubtree(reg *registration, root string) {
	for dir := range reg.dirs {
		if dir == root || isUnder(root, dir) {
			delete(reg.dirs, dir)
			o.refs[dir]--
			if o.refs[dir] <= 0 {
				delete(o.refs, dir)
				_ = o.fsw.Remove(dir)
			}
		}
	}
}

func (o *Observer) loop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case event, ok := <-o.fsw.Events:
			if !ok {
				return
			}
			o.dispatch(event)
		case err, ok := <-o.fsw.Errors:
			if !ok {
				return
			}
			o.logger.Warn("dosya izleyici hatası", "error", err)
		}
	}
}

// dispatch, tek bir fsnotify olayını ilgili kayıtlara dağıtır.
// Kullanıcı callback'leri kilit dışında çağrılır.
func (o *Observer) dispatch(event fsnotify.Event) {
	var callbacks []func()

	o.mu.Lock()
	for _, reg := range o.regs {
		if cb := o.match(reg, event); cb != nil {
			callbacks = append(callbacks, cb)
		}
	}
	o.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// match, olayın kayda uygulanması gereken etkiyi hesaplar. Kilit altında
// çağrılır; döndürdüğü callback kilit dışında çalıştırılır.
func (o *Observer) match(reg *registration, event fsnotify.Event) func() {
	h := reg.handler

	if h.StableFolder {
		return o.matchStable(reg, event)
	}

	if reg.isDir {
		if event.Name != reg.target && !isUnder(reg.target, event.Name) {
			return nil
		}
		if !h.Recursive && filepath.Dir(event.Name) != reg.target && event.Name != reg.target {
			return nil
		}
		rel, err := filepath.Rel(reg.target, event.Name)
		if err == nil && Excluded(rel, h.Excludes) {
			return nil
		}
		// Yeni oluşan alt dizinler izlemeye dahil edilir.
		if h.Recursive && event.Op.Has(fsnotify.Create) {
			if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
				if err := o.addTree(reg, event.Name); err != nil {
					o.logger.Warn("yeni dizin izlemeye eklenemedi", "path", event.Name, "error", err)
				}
			}
		}
		if h.OnEvent == nil {
			return nil
		}
		return func() { h.OnEvent(event) }
	}

	// Tek dosya kaydı: yalnızca hedefin kendisiyle ilgili olaylar geçer.
	if event.Name != reg.target {
		return nil
	}
	if h.OnEvent == nil {
		return nil
	}
	return func() { h.OnEvent(event) }
}

// isUnder, path'ın root altında olup olmadığını söyler (root hariç).
func isUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
