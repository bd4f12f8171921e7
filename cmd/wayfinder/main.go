package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/wayfinder/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override wayfinder config path (optional)")
	prefsPath := flag.String("prefs", "", "override preferences path (optional)")
	serverURL := flag.String("server", "", "Flight server URL (optional, overrides server_url)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		ServerURL:  *serverURL,
	}
	if flag.NArg() > 0 {
		opts.StartURL = flag.Arg(0)
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "wayfinder: %v\n", err)
		return 1
	}
	return 0
}
