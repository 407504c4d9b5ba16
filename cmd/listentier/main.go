package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"listentier/internal/di"
	"listentier/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVarP(&flags.ConfigPath, "config", "c", "config/config.yaml", "path to the YAML config file")
	flag.BoolVarP(&flags.DebugMode, "debug", "d", false, "mirror logs to the console")
	flag.Parse()

	_, cleanup, err := di.InitApp(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listentier: %s\n", err)
		os.Exit(1)
	}
	cleanup()
}
