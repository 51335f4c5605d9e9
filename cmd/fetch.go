package main

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/atlas-cli/internal/fetcher"
)

var (
	fetchOutDir  string
	fetchExtract bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a dataset archive over HTTP or FTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rawURL := args[0]

		outDir := fetchOutDir
		if outDir == "" {
			outDir = cfg.Fetch.CacheDir
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return eris.Wrapf(err, "fetch: create directory %s", outDir)
		}

		f, err := fetcher.ForURL(rawURL, fetchHTTPOptions(), fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return err
		}

		dest := filepath.Join(outDir, remoteFilename(rawURL))
		zap.L().Info("downloading dataset",
			zap.String("url", rawURL),
			zap.String("dest", dest),
		)

		n, err := f.DownloadToFile(ctx, rawURL, dest)
		if err != nil {
			return eris.Wrapf(err, "fetch %s", rawURL)
		}
		fmt.Printf("downloaded %s (%d bytes)\n", dest, n)

		if fetchExtract && strings.EqualFold(filepath.Ext(dest), ".zip") {
			paths, err := fetcher.ExtractZIP(dest, outDir)
			if err != nil {
				return eris.Wrapf(err, "extract %s", dest)
			}
			for _, p := range paths {
				fmt.Println(p)
			}
		}

		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOutDir, "out", "", "destination directory (default from config)")
	fetchCmd.Flags().BoolVar(&fetchExtract, "extract", true, "extract ZIP archives after download")
	rootCmd.AddCommand(fetchCmd)
}

// fetchHTTPOptions maps the fetch config section onto HTTP fetcher options.
func fetchHTTPOptions() fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RateLimit:  rate.Limit(cfg.Fetch.RateLimit),
		Burst:      cfg.Fetch.Burst,
	}
}

// remoteFilename picks a local filename for a download URL.
func remoteFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "dataset.bin"
	}
	return path.Base(u.Path)
}
