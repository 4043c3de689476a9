package pipeline

import "context"

// Task, watch motorunun kara kutu olarak çalıştırdığı build/package/deploy
// adımlarının ortak arayüzüdür. SetUp girdileri yeniden okur, Run çalıştırır;
// ikisi de hata üretebilir ve motor ikisini de ölümcül saymaz.
type Task interface {
	SetUp() error
	Run(ctx context.Context) error
}
