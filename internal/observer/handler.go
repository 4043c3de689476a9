package observer

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// PathHandler, tek bir izleme kaydını temsil eder. Planlandıktan sonra
// değişmez; kaynak/stack modeli değiştiğinde yeni bir PathHandler üretilir.
type PathHandler struct {
	// Path, izlenecek dosya veya dizindir.
	Path string

	// OnEvent, filtrelerden geçen her dosya sistemi olayında çağrılır.
	OnEvent func(fsnotify.Event)

	// Recursive true ise dizin alt ağacıyla birlikte izlenir.
	Recursive bool

	// StableFolder true ise izlenen dizinin kendisi silinip yeniden
	// oluşturulabilir; kayıt bu geçişler boyunca çalışmaya devam eder.
	StableFolder bool

	// OnSelfCreate / OnSelfDelete, stable-folder modunda hedef dizinin
	// kendisi oluştuğunda / kaybolduğunda çağrılır.
	OnSelfCreate func()
	OnSelfDelete func()

	// Excludes, Path'e göre değerlendirilen glob desenleridir. Eşleşen
	// alt yollar ne izlenir ne de olay üretir.
	Excludes []string
}

// WatchHandle, planlanmış bir kaydın opak kimliğidir. Tek işlemi iptaldir.
type WatchHandle uint64

// Excluded, hedefe göreli bir yolun dışlama desenlerinden birine takılıp
// takılmadığını söyler. Desenler yolun her segmentine tek tek uygulanır;
// böylece ".git" deseni hem kökteki hem derindeki .git dizinlerini yakalar.
func Excluded(rel string, patterns []string) bool {
	if rel == "." || rel == "" {
		return false
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for _, segment := range segments {
		for _, pattern := range patterns {
			if ok, err := filepath.Match(pattern, segment); err == nil && ok {
				return true
			}
		}
	}
	return false
}
