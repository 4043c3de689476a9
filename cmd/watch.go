package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/vigil/internal/controller"
	"github.com/melih-ucgun/vigil/internal/pipeline"
	"github.com/melih-ucgun/vigil/internal/template"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Şablonu ve kaynak dizinlerini izler, değişiklikte yeniden derler",
	Long:  `Şablon dosyasını ve her kaynağın kod dizinini izler. Kod değişiklikleri kısa bir toplama penceresinden sonra, şablon değişiklikleri ise anında yeniden derleme tetikler. Tek tek derleme hataları izlemeyi durdurmaz.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := collectWatchOptions(cmd)
		if err != nil {
			pterm.Error.Printf("İzleme başlatılamadı: %v\n", err)
			os.Exit(1)
		}

		// Ctrl+C tek kontrollü çıkış yoludur; izleyici sıralı kapanışı yapar.
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		logger := slog.Default()
		loader := &template.Loader{BaseDir: opts.BaseDir, EnvFiles: opts.EnvFiles}

		watcher := &controller.BuildWatcher{
			Logger: logger,
			Loader: loader,
			Builder: &pipeline.Builder{
				Logger:       logger,
				Loader:       loader,
				TemplatePath: opts.TemplatePath,
				BaseDir:      opts.BaseDir,
				BuildDir:     opts.BuildDir,
			},
			TemplatePath: opts.TemplatePath,
			BaseDir:      opts.BaseDir,
			Exclusions: controller.NewExclusions(logger, opts.BaseDir, opts.BuildDir,
				opts.CacheDir, opts.BuildInSource, opts.Excludes),
			Debounce:     opts.Debounce,
			PollInterval: opts.PollInterval,
		}

		pterm.Info.Printf("İzleme modu başladı: %s (çıkmak için Ctrl+C)\n", opts.TemplatePath)
		if err := watcher.Watch(ctx); err != nil {
			pterm.Error.Printf("İzleme hatası: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
