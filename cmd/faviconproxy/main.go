package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caasmo/faviconproxy"
	"github.com/caasmo/faviconproxy/config"
)

var ErrUnexpectedArgs = errors.New("unexpected arguments")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("faviconproxy", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to a TOML config file. Environment variables override it.")
	dumpConfig := fs.Bool("dump-config", false, "Print the effective configuration as TOML and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: faviconproxy [-config file.toml] [-dump-config]\n\n")
		fmt.Fprintf(fs.Output(), "Serves GET /domain.com with the favicon of domain.com.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: %v", ErrUnexpectedArgs, fs.Args())
	}

	if *dumpConfig {
		cfg, err := config.Load(*configPath, getenv)
		if err != nil {
			return err
		}
		return toml.NewEncoder(stdout).Encode(cfg)
	}

	_, srv, err := faviconproxy.New(*configPath, faviconproxy.WithGetenv(getenv))
	if err != nil {
		return err
	}
	srv.Run()
	return nil
}
