package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/mirror"
)

func main() {
	cfg, err := loadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "storefront",
		Usage: "device-side storefront: local catalog, cart checkout and chat, synced with the server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: cfg.ServerURL, Usage: "sync server base URL (empty works offline)"},
			&cli.StringFlag{Name: "pin", Value: cfg.AdminPIN, Usage: "admin PIN for guarded endpoints"},
			&cli.StringFlag{Name: "cache-dir", Value: cfg.CacheDir, Usage: "directory of the local cache"},
			&cli.BoolFlag{Name: "debug", Value: cfg.Debug, Usage: "verbose logging"},
		},
		Before: func(c *cli.Context) error {
			var logger *zap.Logger
			if c.Bool("debug") {
				logger, _ = zap.NewDevelopment()
			} else {
				logger = zap.NewNop()
			}
			kv, err := mirror.NewFileKV(c.String("cache-dir"))
			if err != nil {
				return err
			}
			client := mirror.NewClient(c.String("server"), c.String("pin"), logger)
			client.SetAdminHeader(cfg.AdminHeader)
			view := mirror.NewView("", mirror.NewCache(kv, logger), client, mirror.NewBus(), logger)
			c.App.Metadata = map[string]interface{}{"view": view, "logger": logger}
			return nil
		},
		After: func(c *cli.Context) error {
			if v, ok := c.App.Metadata["view"].(*mirror.View); ok {
				v.Close()
			}
			return nil
		},
		Commands: commands(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
