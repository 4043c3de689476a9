package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/vigil/internal/consts"
	"github.com/melih-ucgun/vigil/internal/controller"
	"github.com/melih-ucgun/vigil/internal/pipeline"
	"github.com/melih-ucgun/vigil/internal/state"
	"github.com/melih-ucgun/vigil/internal/syncflow"
	"github.com/melih-ucgun/vigil/internal/template"
	"github.com/melih-ucgun/vigil/internal/transport"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "İzler, derler ve değişen kaynakları dağıtılmış stack'e gönderir",
	Long:  `Watch modunun üzerine uzak eşitlemeyi ekler: kod değişiklikleri kaynağı tekil olarak derleyip hedefe yükler, şablon değişiklikleri tam bir derle-paketle-dağıt turu başlatır.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := collectWatchOptions(cmd)
		if err != nil {
			pterm.Error.Printf("Sync başlatılamadı: %v\n", err)
			os.Exit(1)
		}
		hostName, _ := cmd.Flags().GetString("host")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		logger := slog.Default()
		loader := &template.Loader{BaseDir: opts.BaseDir, EnvFiles: opts.EnvFiles}

		tr, remoteDir, err := selectTransport(ctx, loader, opts, hostName)
		if err != nil {
			pterm.Error.Printf("Hedef sunucuya bağlanılamadı: %v\n", err)
			os.Exit(1)
		}
		defer tr.Close()

		stateMgr, err := state.NewManager(consts.GetStateFilePath(opts.BaseDir))
		if err != nil {
			pterm.Error.Printf("Durum dosyası okunamadı: %v\n", err)
			os.Exit(1)
		}

		builder := &pipeline.Builder{
			Logger:       logger,
			Loader:       loader,
			TemplatePath: opts.TemplatePath,
			BaseDir:      opts.BaseDir,
			BuildDir:     opts.BuildDir,
		}
		packager := &pipeline.Packager{
			Logger:       logger,
			Loader:       loader,
			TemplatePath: opts.TemplatePath,
			BuildDir:     opts.BuildDir,
		}
		deployer := &pipeline.Deployer{
			Logger:       logger,
			Loader:       loader,
			TemplatePath: opts.TemplatePath,
			BuildDir:     opts.BuildDir,
			RemoteDir:    remoteDir,
			Transport:    tr,
			State:        stateMgr,
		}

		exclusions := controller.NewExclusions(logger, opts.BaseDir, opts.BuildDir,
			opts.CacheDir, opts.BuildInSource, opts.Excludes)

		watcher := &controller.SyncWatcher{
			Logger:   logger,
			Loader:   loader,
			Builder:  builder,
			Packager: packager,
			Deployer: deployer,
			FlowDeps: &syncflow.Deps{
				Logger:    logger,
				Builder:   builder,
				Packager:  packager,
				Deployer:  deployer,
				Transport: tr,
				State:     stateMgr,
				Excludes:  consts.DefaultWatchExcludes,
			},
			TemplatePath: opts.TemplatePath,
			BaseDir:      opts.BaseDir,
			Exclusions:   exclusions,
			PollInterval: opts.PollInterval,
			FlowDelay:    consts.DefaultFlowDelay,
			Workers:      concurrency,
		}

		pterm.Info.Printf("Sync modu başladı: %s (çıkmak için Ctrl+C)\n", opts.TemplatePath)
		if err := watcher.Watch(ctx); err != nil {
			pterm.Error.Printf("Sync hatası: %v\n", err)
			os.Exit(1)
		}
	},
}

// selectTransport, şablondaki host listesinden hedefi seçer. Ad verilmişse
// o host aranır; verilmemişse ilk host kullanılır. Host tanımlı değilse
// yerel transport'a düşülür; geliştirme sırasında dağıtım çıktısını yerel
// bir dizine yazmak için yeterlidir.
func selectTransport(ctx context.Context, loader *template.Loader, opts *watchOptions, hostName string) (transport.Transport, string, error) {
	stacks, err := loader.Load(opts.TemplatePath)
	if err != nil {
		return nil, "", err
	}

	hosts := template.RootHosts(stacks)
	if len(hosts) == 0 {
		localDir := filepath.Join(opts.BaseDir, consts.DefaultDirName, "deploy")
		slog.Warn("şablonda host tanımlı değil, yerel dağıtım dizini kullanılıyor", "dir", localDir)
		return transport.NewLocalTransport(), localDir, nil
	}

	host := hosts[0]
	if hostName != "" {
		found := false
		for _, h := range hosts {
			if h.Name == hostName {
				host = h
				found = true
				break
			}
		}
		if !found {
			return nil, "", fmt.Errorf("şablonda tanımlı olmayan host: %s", hostName)
		}
	}

	tr, err := transport.NewSSHTransport(ctx, host)
	if err != nil {
		return nil, "", err
	}
	return tr, host.RemoteDir, nil
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("host", "", "şablondaki hedef sunucu adı (varsayılan: ilk host)")
	syncCmd.Flags().Int("concurrency", consts.DefaultWorkerCount, "eş zamanlı sync akışı sayısı")
}
