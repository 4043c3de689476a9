package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/melih-ucgun/vigil/internal/template"
)

// SSHTransport, uzak sunucu ile tüm iletişimi yöneten yapıdır. Dosya
// aktarımları SFTP üzerinden yapılır.
type SSHTransport struct {
	client *ssh.Client
	sftp   *sftp.Client
	host   template.Host
}

// NewSSHTransport, verilen host tanımına göre güvenli bir SSH bağlantısı açar.
func NewSSHTransport(ctx context.Context, h template.Host) (*SSHTransport, error) {
	var authMethods []ssh.AuthMethod

	if h.SSHKeyPath != "" {
		keyData, err := os.ReadFile(h.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("ssh anahtarı okunamadı (%s): %w", h.SSHKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("ssh anahtarı çözümlenemedi: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	// Known hosts doğrulaması (genellikle ~/.ssh/known_hosts)
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("ana dizin bulunamadı: %w", err)
	}
	knownHostsPath := filepath.Join(homeDir, ".ssh", "known_hosts")
	hostKeyCallback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		// Dosya yoksa kullanıcıyı uyar ama güvenli olmayan bir fallback sunma.
		return nil, fmt.Errorf("known_hosts dosyası yüklenemedi (%s): %w. Lütfen sunucuya önce manuel ssh ile bağlanıp anahtarı kaydedin", knownHostsPath, err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            h.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         15 * time.Second,
	}

	port := h.Port
	if port == 0 {
		port = 22
	}
	addr := fmt.Sprintf("%s:%d", h.Address, port)

	// Context iptali dial aşamasında da geçerli olsun diye bağlantı elle kurulur.
	dialer := net.Dialer{Timeout: clientConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SSH bağlantısı kurulamadı (%s): %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("SSH el sıkışması başarısız. Sunucu kimliği doğrulanamadı veya bağlantı reddedildi: %w", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sftp oturumu açılamadı: %w", err)
	}

	return &SSHTransport{client: client, sftp: sftpClient, host: h}, nil
}

// Execute, uzak sunucuda bir komut çalıştırır ve birleşik çıktıyı döner.
func (t *SSHTransport) Execute(ctx context.Context, cmd string) (string, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return out.String(), ctx.Err()
	case err := <-done:
		return out.String(), err
	}
}

// Upload, yerel dosyayı SFTP ile uzak yola kopyalar.
func (t *SSHTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := t.sftp.MkdirAll(filepath.ToSlash(filepath.Dir(remotePath))); err != nil {
		return fmt.Errorf("uzak dizin oluşturulamadı: %w", err)
	}

	dst, err := t.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("uzak dosya oluşturulamadı (%s): %w", remotePath, err)
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		return fmt.Errorf("dosya yükleme hatası: %w", err)
	}
	return nil
}

// ReadFile, uzak dosyayı SFTP ile okur.
func (t *SSHTransport) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := t.sftp.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close, SFTP ve SSH bağlantılarını kapatır.
func (t *SSHTransport) Close() error {
	if t.sftp != nil {
		_ = t.sftp.Close()
	}
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
