// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command luacore is a thin host around the runtime package: it loads an
// optional TOML config, installs the base library, and either runs one
// hand-built demo program or drops into an interactive shell.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/probeum/lucore/internal/config"
	"github.com/probeum/lucore/internal/native"
	"github.com/probeum/lucore/internal/runtime"
	"github.com/probeum/lucore/internal/value"
)

const version = "0.1.0"

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "loglevel",
		Usage: "log level: crit, error, warn, info, debug, trace",
		Value: "info",
	}
	demoFlag = cli.StringFlag{
		Name:  "demo",
		Usage: "run a built-in demo program (hello, sum) and exit",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "luacore"
	app.Usage = "lucore runtime shell"
	app.Version = version
	app.Flags = []cli.Flag{configFlag, logLevelFlag, demoFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "luacore: %v\n", err)
		os.Exit(1)
	}
}

func parseLevel(s string) runtime.Lvl {
	switch strings.ToLower(s) {
	case "crit":
		return runtime.LvlCrit
	case "error":
		return runtime.LvlError
	case "warn":
		return runtime.LvlWarn
	case "debug":
		return runtime.LvlDebug
	case "trace":
		return runtime.LvlTrace
	default:
		return runtime.LvlInfo
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	log := runtime.NewLogger(os.Stderr, parseLevel(ctx.String(logLevelFlag.Name)))
	rt := runtime.New(cfg, log)
	native.New(rt.Heap(), rt.Registry()).Install(rt.Globals())

	if name := ctx.String(demoFlag.Name); name != "" {
		return runDemo(rt, name)
	}
	return repl(rt)
}

func runDemo(rt *runtime.Runtime, name string) error {
	build, ok := demos[name]
	if !ok {
		names := make([]string, 0, len(demos))
		for n := range demos {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown demo %q (have: %s)", name, strings.Join(names, ", "))
	}
	c := build(rt.Heap(), rt.Globals())
	_, ok2, errVal := rt.Eval(value.Obj(c))
	if !ok2 {
		return fmt.Errorf("demo %q: %s", name, value.ToStringSimple(errVal))
	}
	return nil
}

// repl is a line-oriented shell, not a Lua toplevel: there is no parser in
// scope, so it understands a handful of dot-commands that exercise the
// runtime instead of arbitrary source text.
func repl(rt *runtime.Runtime) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("lucore shell — .help for commands, .exit to quit")
	for {
		input, err := line.Prompt("lucore> ")
		if err != nil {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		switch fields[0] {
		case ".exit", ".quit":
			return nil
		case ".help":
			fmt.Println(".demo <name>   run a built-in demo (hello, sum)")
			fmt.Println(".globals       list global table keys")
			fmt.Println(".gc            force a full collection")
			fmt.Println(".exit          quit the shell")
		case ".demo":
			if len(fields) < 2 {
				fmt.Println("usage: .demo <name>")
				continue
			}
			if err := runDemo(rt, fields[1]); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case ".globals":
			printGlobals(rt)
		case ".gc":
			rt.Heap().Collect()
			fmt.Println("ok")
		default:
			fmt.Fprintf(os.Stderr, "unrecognized command %q (try .help)\n", fields[0])
		}
	}
}

func printGlobals(rt *runtime.Runtime) {
	g := rt.Globals()
	k := value.Nil
	for {
		nk, _, ok, err := g.Next(k)
		if err != nil || !ok {
			return
		}
		fmt.Println(value.ToStringSimple(nk))
		k = nk
	}
}
