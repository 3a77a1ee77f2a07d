// Copyright 2025 Bora Kaplan
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command sage runs the knowledge assistant.
//
// Usage:
//
//	sage chat --config config.yaml
//	sage serve --config config.yaml
//	sage index --config config.yaml
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/kaplanbora/sage/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Chat    ChatCmd    `cmd:"" help:"Start an interactive chat session."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`
	Index   IndexCmd   `cmd:"" help:"Rebuild the vector index from the page store."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("sage version %s\n", version)
	return nil
}

// loadConfig reads the config file, or starts from defaults when no file is
// given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if err := config.LoadEnvFiles(); err != nil {
			return nil, err
		}
		cfg := &config.Config{}
		cfg.SetDefaults()
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.LoadConfig(path)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("sage"),
		kong.Description("A multi-agent personal knowledge assistant."),
		kong.UsageOnError(),
	)

	cleanup, err := initLogging(cli.LogLevel, cli.LogFormat, cli.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
