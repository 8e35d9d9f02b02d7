// Copyright 2024 The Lucore Authors
// This file is part of Lucore.
//
// Lucore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package config loads lucore's runtime tuning knobs from an optional TOML
// file (github.com/naoina/toml, the teacher's own node-config library),
// merged over built-in defaults the way the teacher's cmd/gprobe merges a
// config file over flag defaults.
package config

import (
	"bufio"
	"errors"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

// tomlSettings mirrors the teacher's own gprobe config loader: struct field
// names are used as-is for TOML keys.
var tomlSettings = toml.Config{
	NormFieldName: func(_ reflect.Type, key string) string { return key },
	FieldToKey:    func(_ reflect.Type, field string) string { return field },
}

// Config holds the GC and thread tuning parameters exposed to operators;
// everything else about the runtime (the instruction set, the value model)
// is fixed and not configurable.
type Config struct {
	// GC section
	GC struct {
		// MemoryLimitBytes is the soft allocation ceiling before a step is
		// forced (heap.New's limit parameter); 0 uses the heap package's
		// own built-in default.
		MemoryLimitBytes uint64 `toml:"memory_limit_bytes"`
		// Generational toggles generational mode (§9 Open Question 2), in
		// which an object that survives one sweep is marked old, instead of
		// plain incremental mark-sweep.
		Generational bool `toml:"generational"`
		// PauseMultiplierPercent is named after Lua's "pause" GC parameter.
		// It is loaded and defaulted here, but no other lucore package reads
		// it: the heap's collection threshold is MemoryLimitBytes alone.
		PauseMultiplierPercent int `toml:"pause_multiplier_percent"`
		// StepMultiplierPercent is named after Lua's "stepmul". It is loaded
		// and defaulted here, but no other lucore package reads it, and
		// StepAuto's amount of work does not depend on it.
		StepMultiplierPercent int `toml:"step_multiplier_percent"`
	} `toml:"gc"`

	// Thread section
	Thread struct {
		// InitialStackSize names the number of register slots a new thread
		// preallocates. No other lucore package reads it: thread.New always
		// preallocates 256 slots.
		InitialStackSize int `toml:"initial_stack_size"`
		// MaxCallDepth names a bound on non-tail call nesting. No other
		// lucore package reads it; call depth is not checked and
		// luaerr.ErrStackOverflow is never returned.
		MaxCallDepth int `toml:"max_call_depth"`
	} `toml:"thread"`

	// Debug section
	Debug struct {
		// HooksEnabled is loaded and defaulted here, but no other lucore
		// package reads it: Thread.SetHook and the vm's hook firing do not
		// consult it, so installed hooks fire whatever its value.
		HooksEnabled bool `toml:"hooks_enabled"`
	} `toml:"debug"`
}

// Default returns the built-in configuration used when no file is supplied.
func Default() *Config {
	c := &Config{}
	c.GC.MemoryLimitBytes = 64 * 1024 * 1024
	c.GC.Generational = false
	c.GC.PauseMultiplierPercent = 200
	c.GC.StepMultiplierPercent = 100
	c.Thread.InitialStackSize = 256
	c.Thread.MaxCallDepth = 200
	c.Debug.HooksEnabled = true
	return c
}

// Load reads a TOML file at path and merges it over Default(); a missing
// file is not an error — the defaults are returned unchanged, matching the
// teacher's "config file is optional" convention for gprobe.toml.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(path + ", " + err.Error())
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
