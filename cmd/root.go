package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xb0rn3/fastdl/internal/display"
	"github.com/0xb0rn3/fastdl/internal/fetch"
	"github.com/0xb0rn3/fastdl/internal/scheduler"
	"github.com/0xb0rn3/fastdl/internal/utils"
)

var (
	output        string
	outputDir     string
	connections   int
	segmentSizeMB int
	timeout       time.Duration
	maxRetries    int
	maxConcurrent int
	userAgent     string
	urlListFile   string
	batchFile     string
	debug         bool
)

var FastdlVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "fastdl [URL...]",
	Short:   "fastdl is a fast multi-connection download manager",
	Version: FastdlVersion,
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		requests, err := buildRequests(args)
		if err != nil {
			display.PrintError(err.Error())
			os.Exit(1)
		}
		if len(requests) == 0 {
			display.PrintError("No URL, URL list, or batch file provided")
			os.Exit(1)
		}

		cfg := utils.DefaultConfig()
		cfg.OutputDir = outputDir
		cfg.Connections = connections
		cfg.SegmentThresholdMB = segmentSizeMB
		cfg.Timeout = timeout
		cfg.MaxRetries = maxRetries
		cfg.MaxConcurrent = maxConcurrent
		cfg.UserAgent = userAgent
		if err := cfg.Validate(); err != nil {
			display.PrintError(err.Error())
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		outcomes, succeeded := runBatch(ctx, cfg, requests)
		if succeeded < len(outcomes) {
			os.Exit(1)
		}
	},
}

func runBatch(ctx context.Context, cfg utils.Config, requests []fetch.TransferRequest) ([]fetch.TransferOutcome, int) {
	if len(requests) == 1 {
		bar := display.NewSingleBar()
		bar.Start()
		defer bar.Stop()
		return scheduler.Run(ctx, cfg, requests, bar)
	}
	display.PrintInfo(fmt.Sprintf("Downloading %d files, %d at a time", len(requests), cfg.MaxConcurrent))
	manager := display.NewManager()
	manager.Start()
	outcomes, succeeded := scheduler.Run(ctx, cfg, requests, manager)
	manager.Stop()
	manager.Summary(outcomes, succeeded)
	return outcomes, succeeded
}

func buildRequests(args []string) ([]fetch.TransferRequest, error) {
	var requests []fetch.TransferRequest
	addURL := func(rawURL, filename string) error {
		if _, err := u.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid URL: %s", rawURL)
		}
		requests = append(requests, fetch.NewTransferRequest(rawURL, filename, outputDir))
		return nil
	}
	if output != "" && (len(args) > 1 || urlListFile != "" || batchFile != "") {
		return nil, fmt.Errorf("--output only applies to a single URL download")
	}
	for _, rawURL := range args {
		name := ""
		if output != "" {
			name = output
			// keep explicit names from silently overwriting existing files
			if _, err := os.Stat(filepath.Join(outputDir, name)); err == nil {
				name = filepath.Base(utils.RenewOutputPath(filepath.Join(outputDir, name)))
			}
		}
		if err := addURL(rawURL, name); err != nil {
			return nil, err
		}
	}
	if urlListFile != "" {
		urls, err := utils.ReadURLList(urlListFile)
		if err != nil {
			return nil, err
		}
		for _, rawURL := range urls {
			if err := addURL(rawURL, ""); err != nil {
				return nil, err
			}
		}
	}
	if batchFile != "" {
		entries, err := utils.ReadBatchList(batchFile)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if err := addURL(entry.URL, entry.OutputPath); err != nil {
				return nil, err
			}
		}
	}
	return requests, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output file name (fastdl infers the name if not provided)")
	rootCmd.Flags().StringVarP(&outputDir, "dir", "d", ".", "Output directory")
	rootCmd.Flags().StringVarP(&urlListFile, "urllist", "l", "", "Path to text file with one URL per line ('#' comments allowed)")
	rootCmd.Flags().StringVarP(&batchFile, "batch", "b", "", "Path to YAML file with link/op entries")
	rootCmd.Flags().IntVarP(&connections, "connections", "c", 8, "Number of connections per download (1-32)")
	rootCmd.Flags().IntVarP(&segmentSizeMB, "segment-size", "s", 1, "Segment size threshold in MB below which downloads are streamed (1-10)")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Network operation timeout (eg. 30s, 2m)")
	rootCmd.Flags().IntVarP(&maxRetries, "retries", "r", 3, "Retry attempts per segment (1-10)")
	rootCmd.Flags().IntVarP(&maxConcurrent, "workers", "w", 3, "Number of files to download in parallel (1-10)")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
