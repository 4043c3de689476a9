package observer

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// matchStable, stable-folder kayıtlarının olay işleyişidir.
//
// Hedef dizin hiçbir zaman "kalıcı" kabul edilmez: üst dizindeki her olayda
// hedefin varlığı yeniden kontrol edilir. Hedef kaybolduysa alt ağaç izlemesi
// bırakılır ve OnSelfDelete çağrılır; geri geldiyse alt ağaç yeniden kurulur
// ve OnSelfCreate çağrılır. Naif recursive izleme, yeniden adlandırılan dizin
// için bayat handle üzerinden olay vermeye devam ederdi; bu akış o hatayı
// devre dışı bırakır.
func (o *Observer) matchStable(reg *registration, event fsnotify.Event) func() {
	h := reg.handler
	var callbacks []func()

	if filepath.Dir(event.Name) == reg.parent {
		info, err := os.Stat(reg.target)
		exists := err == nil && info.IsDir()

		switch {
		case !exists && reg.childActive:
			reg.childActive = false
			o.releaseSubtree(reg, reg.target)
			if h.OnSelfDelete != nil {
				callbacks = append(callbacks, h.OnSelfDelete)
			}
		case exists && !reg.childActive:
			if err := o.addTree(reg, reg.target); err != nil {
				o.logger.Warn("hedef dizin yeniden izlemeye alınamadı", "path", reg.target, "error", err)
			} else {
				reg.childActive = true
				if h.OnSelfCreate != nil {
					callbacks = append(callbacks, h.OnSelfCreate)
				}
			}
		}
	}

	// İçerik olayları yalnızca hedef aktifken iletilir.
	if reg.childActive && (event.Name == reg.target || isUnder(reg.target, event.Name)) {
		rel, err := filepath.Rel(reg.target, event.Name)
		if err != nil || !Excluded(rel, h.Excludes) {
			if event.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := o.addTree(reg, event.Name); addErr != nil {
						o.logger.Warn("yeni dizin izlemeye eklenemedi", "path", event.Name, "error", addErr)
					}
				}
			}
			if h.OnEvent != nil {
				ev := event
				callbacks = append(callbacks, func() { h.OnEvent(ev) })
			}
		}
	}

	switch len(callbacks) {
	case 0:
		return nil
	case 1:
		return callbacks[0]
	default:
		return func() {
			for _, cb := range callbacks {
				cb()
			}
		}
	}
}
