package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"

	"github.com/Ratio1/dropbox_sdk_go/internal/devseed"
	"github.com/Ratio1/dropbox_sdk_go/pkg/sandbox"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8787", "listen address")
	seed := flag.String("seed", "", "path to a YAML or JSON seed file")
	pageSize := flag.Int("page-size", sandbox.DefaultPageSize, "entries per list_folder page")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>,cut=<bytes>)")
	token := flag.String("token", "", "only accept this bearer token")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "dbx-sandbox",
		Level: hclog.LevelFromString(*logLevel),
	})

	store := sandbox.NewStore(nil)
	if *seed != "" {
		entries, err := devseed.Load(*seed)
		if err != nil {
			logger.Error("load seed", "error", err)
			os.Exit(1)
		}
		if err := store.Seed(entries); err != nil {
			logger.Error("apply seed", "error", err)
			os.Exit(1)
		}
		logger.Info("seeded", "entries", len(entries))
	}

	failCfg, err := sandbox.ParseFailureConfig(*fail)
	if err != nil {
		logger.Error("parse fail flag", "error", err)
		os.Exit(1)
	}

	srv := sandbox.New(
		sandbox.WithStore(store),
		sandbox.WithLogger(logger),
		sandbox.WithPageSize(*pageSize),
		sandbox.WithLatency(*latency),
		sandbox.WithFailure(failCfg),
		sandbox.WithToken(*token),
	)
	running, err := srv.Listen(*addr)
	if err != nil {
		logger.Error("listen", "error", err)
		os.Exit(1)
	}

	printExports(running.URL, *token)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := running.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
		os.Exit(1)
	}
}

func printExports(url, token string) {
	if token == "" {
		token = "sandbox"
	}
	base := strings.TrimSuffix(url, "/")
	fmt.Println()
	fmt.Println("export DBX_RUNTIME_MODE=http")
	fmt.Printf("export DBX_OAUTH_TOKEN=%s\n", token)
	fmt.Printf("export DBX_API_URL=%s/2/\n", base)
	fmt.Printf("export DBX_CONTENT_URL=%s/2/\n", base)
	fmt.Printf("export DBX_NOTIFY_URL=%s/2/\n", base)
	fmt.Printf("export DBX_OAUTH2_URL=%s/\n", base)
	fmt.Println()
}
