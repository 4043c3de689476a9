package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/vigil/internal/consts"
)

var rootCmd = &cobra.Command{
	Use:   "vigil",
	Short: "Watch, build and sync your serverless stack as you type.",
	Long:  `Vigil watches an infrastructure template and its resource source directories, rebuilds changed resources incrementally and, in sync mode, pushes them to the deployed stack.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Bayraklar bu noktada parse edilmiştir; -v log seviyesini düşürür.
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(),
		})
		slog.SetDefault(slog.New(handler))
	},
}

var verboseCount int

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Stdout borulamaya açık kalsın diye tüm çıktı stderr'e gider.
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	pterm.SetDefaultOutput(os.Stderr)
	pterm.Success.Writer = os.Stderr
	pterm.Info.Writer = os.Stderr
	pterm.Error.Writer = os.Stderr
	pterm.Warning.Writer = os.Stderr
	pterm.DefaultHeader.Writer = os.Stderr

	rootCmd.PersistentFlags().StringP("template", "t", consts.DefaultTemplateName, "izlenecek şablon dosyası")
	rootCmd.PersistentFlags().String("base-dir", "", "kaynak yollarının çözüldüğü kök dizin (varsayılan: şablonun dizini)")
	rootCmd.PersistentFlags().String("build-dir", "", "derleme çıktı dizini (varsayılan: <base-dir>/"+consts.DefaultDirName+"/"+consts.BuildDirName+")")
	rootCmd.PersistentFlags().String("cache-dir", "", "önbellek dizini (varsayılan: <base-dir>/"+consts.DefaultDirName+"/"+consts.CacheDirName+")")
	rootCmd.PersistentFlags().Bool("build-in-source", false, "derleme çıktısını kaynak ağacının içinde tut")
	rootCmd.PersistentFlags().StringArray("exclude", nil, "izleme dışlama deseni, kaynak=glob biçiminde ('*' tüm kaynaklar)")
	rootCmd.PersistentFlags().Duration("debounce", consts.DefaultDebounce, "kod değişikliklerini toplama süresi")
	rootCmd.PersistentFlags().Duration("poll-interval", consts.DefaultPollInterval, "ana döngü yoklama aralığı")
	rootCmd.PersistentFlags().StringArray("env-file", nil, "şablon değişkenleri için .env dosyası")
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "Increase verbosity level (-v, -vv)")
}

func logLevel() slog.Level {
	switch {
	case verboseCount >= 1:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// watchOptions, watch ve sync komutlarının bayraklardan derlediği ortak
// yapılandırmadır.
type watchOptions struct {
	TemplatePath  string
	BaseDir       string
	BuildDir      string
	CacheDir      string
	BuildInSource bool
	Excludes      map[string][]string
	EnvFiles      []string
	Debounce      time.Duration
	PollInterval  time.Duration
}

func collectWatchOptions(cmd *cobra.Command) (*watchOptions, error) {
	templatePath, _ := cmd.Flags().GetString("template")
	baseDir, _ := cmd.Flags().GetString("base-dir")
	buildDir, _ := cmd.Flags().GetString("build-dir")
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	buildInSource, _ := cmd.Flags().GetBool("build-in-source")
	rawExcludes, _ := cmd.Flags().GetStringArray("exclude")
	envFiles, _ := cmd.Flags().GetStringArray("env-file")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")

	absTemplate, err := filepath.Abs(templatePath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absTemplate); err != nil {
		return nil, fmt.Errorf("şablon dosyası bulunamadı: %s", templatePath)
	}
	if baseDir == "" {
		baseDir = filepath.Dir(absTemplate)
	}
	if buildDir == "" {
		buildDir = consts.GetBuildDirPath(baseDir)
	}
	if cacheDir == "" {
		cacheDir = consts.GetCacheDirPath(baseDir)
	}

	return &watchOptions{
		TemplatePath:  absTemplate,
		BaseDir:       baseDir,
		BuildDir:      buildDir,
		CacheDir:      cacheDir,
		BuildInSource: buildInSource,
		Excludes:      parseExcludes(rawExcludes),
		EnvFiles:      envFiles,
		Debounce:      debounce,
		PollInterval:  pollInterval,
	}, nil
}

// parseExcludes, "kaynak=glob" girdilerini kaynak başına desen listesine
// çevirir. '=' içermeyen girdi tüm kaynaklara uygulanır.
func parseExcludes(raw []string) map[string][]string {
	excludes := make(map[string][]string)
	for _, entry := range raw {
		key, pattern, found := strings.Cut(entry, "=")
		if !found {
			excludes["*"] = append(excludes["*"], entry)
			continue
		}
		key = strings.TrimSpace(key)
		pattern = strings.TrimSpace(pattern)
		if key == "" || pattern == "" {
			continue
		}
		excludes[key] = append(excludes[key], pattern)
	}
	return excludes
}
