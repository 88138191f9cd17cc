// Copyright 2025 Lumen Education
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

// Command compass serves social-emotional skill assessments over HTTP.
//
// Usage:
//
//	compass serve --config compass.yaml
//	compass serve                          (configuration from environment)
//	compass validate compass.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	compass "github.com/lumen-ed/compass"
	"github.com/lumen-ed/compass/pkg/config"
)

// CLI is the kong grammar for the compass binary.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the inference service."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration and fusion weights."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the configuration."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, json)."`
}

// VersionCmd prints the build stamp and exits.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(compass.GetVersion().String())
	return nil
}

const (
	indigo    = "\033[38;2;99;102;241m" // lumen indigo, #6366f1
	ansiReset = "\033[0m"
)

const banner = `
 ██████╗ ██████╗ ███╗   ███╗██████╗  █████╗ ███████╗███████╗
██╔════╝██╔═══██╗████╗ ████║██╔══██╗██╔══██╗██╔════╝██╔════╝
██║     ██║   ██║██╔████╔██║██████╔╝███████║███████╗███████╗
██║     ██║   ██║██║╚██╔╝██║██╔═══╝ ██╔══██║╚════██║╚════██║
╚██████╗╚██████╔╝██║ ╚═╝ ██║██║     ██║  ██║███████║███████║
 ╚═════╝ ╚═════╝ ╚═╝     ╚═╝╚═╝     ╚═╝  ╚═╝╚══════╝╚══════╝
`

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// isQuietCommand reports whether the invocation is an informational command
// whose output should stay clean for piping, rather than the long-running
// server.
func isQuietCommand(args []string) bool {
	for _, arg := range args[1:] {
		switch arg {
		case "version", "validate", "schema":
			return true
		}
	}
	return false
}

func main() {
	if stdoutIsTerminal() && !isQuietCommand(os.Args) {
		fmt.Printf("%s%s%s\n", indigo, banner, ansiReset)
	}

	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env files: %v\n", err)
		os.Exit(1)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("compass"),
		kong.Description("Compass - social-emotional skill inference service"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
