package main

import (
	"os"

	"github.com/spf13/cobra"

	"schoolsite/pkg/config"
	"schoolsite/pkg/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globals struct {
	configPath string
	verbose    bool
}

func (g *globals) load() (*config.Config, error) {
	path := g.configPath
	if path == "" {
		path = os.Getenv(config.EnvFile)
	}
	return config.LoadFile(path)
}

func (g *globals) logger() logger.Logger {
	level := "warn"
	if g.verbose {
		level = "debug"
	}
	return logger.Init(&logger.Config{Level: level, Output: os.Stderr, TimeFormat: "15:04:05", Prefix: "cli"})
}

func rootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "schoolsite",
		Short:        "Inspect CMS content and the local submission ledgers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML config file (default $"+config.EnvFile+")")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		normalizeCmd(g),
		fetchCmd(g),
		submissionsCmd(g),
		donationsCmd(g),
		signCmd(),
	)
	return root
}
