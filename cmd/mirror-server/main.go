package main

import (
	"flag"
	"os"

	"github.com/gin-gonic/gin"

	"schoolsite/internal/mirror"
	"schoolsite/internal/web"
	"schoolsite/pkg/logger"
)

// Serves snapshots written by export-mirror on the CMS's own paths. Point
// cms.base_url at it to run the API offline.
func main() {
	var (
		dir  = flag.String("dir", "data/mirror", "snapshot directory")
		addr = flag.String("addr", ":1337", "listen address")
	)
	flag.Parse()

	log := logger.Init(&logger.Config{Level: "info", Output: os.Stderr, TimeFormat: "15:04:05", Prefix: "mirror"})
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), web.RequestLogger(log))
	mirror.NewStore(*dir).RegisterRoutes(r)

	log.Info("mirror server listening", "addr", *addr, "dir", *dir)
	if err := r.Run(*addr); err != nil {
		log.Error("mirror server stopped", "err", err)
		os.Exit(1)
	}
}
