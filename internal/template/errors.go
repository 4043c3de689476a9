package template

import "fmt"

// InvalidTemplateError, şablon dosyası yapısal olarak geçersiz olduğunda döner.
// Editor kaydı sırasındaki geçici durumlardan (TransientTemplateError) ayırt
// edilebilir olması gerekir; watch controller'lar ikisini farklı ele alır.
type InvalidTemplateError struct {
	Path string
	Err  error
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("şablon geçersiz (%s): %v", e.Path, e.Err)
}

func (e *InvalidTemplateError) Unwrap() error {
	return e.Err
}

// TransientTemplateError, şablon dosyası bir kayıt işleminin ortasında
// (eksik, boş veya henüz yazılmamış) yakalandığında döner. Kalıcı bir hata
// değildir; bir sonraki olayda tekrar denenir.
type TransientTemplateError struct {
	Path string
}

func (e *TransientTemplateError) Error() string {
	return fmt.Sprintf("şablon geçici olarak okunamıyor (%s)", e.Path)
}

// ResourceNotFoundError, çözümleyici verilen kimliği stack modelinde
// bulamadığında döner. Trigger kurulumunda kaynak başına yakalanır.
type ResourceNotFoundError struct {
	ID ResourceID
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("kaynak bulunamadı: %s", e.ID)
}
