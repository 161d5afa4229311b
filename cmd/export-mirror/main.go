package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/mirror"
	"schoolsite/internal/server"
	"schoolsite/pkg/config"
	"schoolsite/pkg/logger"
)

func main() {
	var (
		out         = flag.String("out", "data/mirror", "directory for <collection>.json snapshots")
		collections = flag.String("collections", strings.Join(mirror.Public, ","), "comma separated collections")
		configPath  = flag.String("config", os.Getenv(config.EnvFile), "YAML config file")
	)
	flag.Parse()

	log := logger.Init(&logger.Config{Level: "info", Output: os.Stderr, TimeFormat: "15:04:05", Prefix: "mirror"})

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}
	cfg.CMS.CacheTTL = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	client := server.NewCMSClient(cfg.CMS, cmsclient.WithLogger(log))
	var names []string
	for _, n := range strings.Split(*collections, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if err := mirror.Snapshot(ctx, client, *out, names); err != nil {
		log.Error("snapshot failed", "err", err)
		os.Exit(1)
	}
	log.Info("snapshot written", "dir", *out, "collections", len(names))
}
