package transport

import "context"

// Transport, dağıtım hedefiyle tüm iletişimi soyutlar. Sync akışları ve
// deployer yalnızca bu arayüzü görür; SSH, yerel ve mock uygulamaları vardır.
type Transport interface {
	// Execute, hedefte bir komut çalıştırır ve birleşik çıktıyı döner.
	Execute(ctx context.Context, cmd string) (string, error)
	// Upload, yerel bir dosyayı hedefteki yola kopyalar.
	Upload(ctx context.Context, localPath, remotePath string) error
	// ReadFile, hedefteki bir dosyayı okur.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Close, bağlantıyı kapatır.
	Close() error
}
