// Package main accessctl 本地命令行入口
//
// 直接打开配置的存储（默认 SQLite 文件），会话保存在 "user" 元数据键中，
// 因此多次调用之间保持登录状态。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"campus-access/internal/apiserver/app"
	"campus-access/internal/config"
	"campus-access/pkg/logging"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "accessctl: %v\n", err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var configDir, sqlitePath, logLevel string
	var demo bool

	flagSet := pflag.NewFlagSet("accessctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&configDir, "config-dir", "", "directory holding common.yaml and {env}.yaml")
	flagSet.StringVar(&sqlitePath, "db", "", "SQLite file (overrides database.path)")
	flagSet.BoolVar(&demo, "demo", false, "seed demo users and requests on first run")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level for diagnostics on stderr")
	flagSet.Usage = func() { printHelp(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 || rest[0] == "help" {
		printHelp(stdout, flagSet)
		return nil
	}

	if configDir != "" {
		config.SetConfigDir(configDir)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if sqlitePath != "" {
		cfg.UseSQLite(sqlitePath)
	}
	if demo {
		cfg.Seed.DemoData = true
	}
	// 进程在命令结束后退出，自动推进只在 request new --wait 时显式安排
	cfg.Simulation.Enabled = false

	log := logging.New(logging.Config{Level: logLevel, Format: "text", Output: "stderr", Component: "accessctl"})
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := newCLI(ctx, a, stdout, stderr)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, rest)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `accessctl manages building access requests against the local store.

Usage:
  accessctl [global flags] <command> [flags]

Commands:
  signup --name N --email E --password P   create a faculty account (needs approval)
  login <email|username> --password P      start a session
  logout                                   end the session
  whoami                                   show the session user
  profile --building B --role R [--office O]
  request new [flags] [--wait]             submit a request
  request list [--status S]                list visible requests
  request show <id>
  request status <id> <status>             Under review | Approved | Rejected
  users pending                            admin: accounts awaiting approval
  users approve <id>                       admin: approve and cascade
  kpis                                     dashboard numbers
  report [--out DIR]                       export approved-access CSV
  suggest <justification...>               suggest a building

Global flags:
%s`, flagSet.FlagUsages())
}
