// Package config handles loading and storing server configuration.
package config

import (
	"context"
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds the server process's configuration values: the ones that
// govern the simulation loop and transport, not the per-game rules the Game
// implementation owns.
type Config struct {
	ListenAddr           string  `mapstructure:"ListenAddr"`
	TickRate             int     `mapstructure:"TickRate"`
	SnapshotHistorySize  int     `mapstructure:"SnapshotHistorySize"`
	ClockSyncIntervalMs  int64   `mapstructure:"ClockSyncIntervalMs"`
	MaxRewindMs          int64   `mapstructure:"MaxRewindMs"`
	InterpolationDelayMs int64   `mapstructure:"InterpolationDelayMs"`
	InputBurstPerTick    int     `mapstructure:"InputBurstPerTick"`
	LogLevel             string  `mapstructure:"LogLevel"`
}

// C is the global configuration instance.
var C Config

// mu protects concurrent access to C during hot-reload.
var mu sync.RWMutex

// watcherMu protects the watcher state
var (
	watcherMu       sync.Mutex
	watcherActive   bool
	watcherCtx      context.Context
	watcherCancel   context.CancelFunc
	currentCallback ReloadCallback
)

// ReloadCallback is called when the configuration is hot-reloaded.
type ReloadCallback func(old, new Config)

// Load reads config.toml from "." or "$HOME/.netplay" over the built-in
// defaults, populating C. A missing file is not an error. Environment
// variables are not read.
func Load() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.netplay")

	viper.SetDefault("ListenAddr", ":7777")
	viper.SetDefault("TickRate", 60)
	viper.SetDefault("SnapshotHistorySize", 180)
	viper.SetDefault("ClockSyncIntervalMs", 5000)
	viper.SetDefault("MaxRewindMs", 200)
	viper.SetDefault("InterpolationDelayMs", 33)
	viper.SetDefault("InputBurstPerTick", 8)
	viper.SetDefault("LogLevel", "info")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	return viper.Unmarshal(&C)
}

// Save writes the current configuration to file.
func Save() error {
	mu.RLock()
	defer mu.RUnlock()

	viper.Set("ListenAddr", C.ListenAddr)
	viper.Set("TickRate", C.TickRate)
	viper.Set("SnapshotHistorySize", C.SnapshotHistorySize)
	viper.Set("ClockSyncIntervalMs", C.ClockSyncIntervalMs)
	viper.Set("MaxRewindMs", C.MaxRewindMs)
	viper.Set("InterpolationDelayMs", C.InterpolationDelayMs)
	viper.Set("InputBurstPerTick", C.InputBurstPerTick)
	viper.Set("LogLevel", C.LogLevel)

	return viper.WriteConfig()
}

// Watch starts watching the config file for changes and calls the callback
// on reload. Returns a stop function to cancel watching.
// Only one watcher can be active at a time. Calling Watch when a watcher is
// active will replace the callback but keep the same underlying file
// watcher (to avoid viper race conditions).
//
// TickRate changes from a hot-reload never apply to an already-running
// Server: the fixed-delta invariant netcode.Game.Simulate depends on
// requires a restart, not a live swap. Callers should treat a changed
// TickRate in the reload callback as a signal to restart, not as something
// to push into the live server.
func Watch(callback ReloadCallback) (stop func(), err error) {
	watcherMu.Lock()
	defer watcherMu.Unlock()

	// If no watcher is active, start one
	if !watcherActive {
		ctx, cancel := context.WithCancel(context.Background())
		watcherCtx = ctx
		watcherCancel = cancel
		currentCallback = callback
		watcherActive = true

		// Start viper's file watcher (each time no watcher is active,
		// including after a previous stop)
		viper.WatchConfig()
		viper.OnConfigChange(func(e fsnotify.Event) {
			watcherMu.Lock()
			cb := currentCallback
			ctx := watcherCtx
			watcherMu.Unlock()

			// Check if watcher has been stopped
			if ctx != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}

			mu.Lock()
			old := C
			var newCfg Config
			if err := viper.Unmarshal(&newCfg); err == nil {
				C = newCfg
				mu.Unlock()
				if cb != nil {
					cb(old, newCfg)
				}
			} else {
				mu.Unlock()
			}
		})
	} else {
		// Watcher already active, just replace the callback
		currentCallback = callback
	}

	return func() {
		watcherMu.Lock()
		defer watcherMu.Unlock()
		if watcherCancel != nil {
			watcherCancel()
			watcherCancel = nil
			watcherCtx = nil
		}
		watcherActive = false
		currentCallback = nil
	}, nil
}

// Get returns a copy of the current config safely.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return C
}

// Set updates the config safely.
func Set(cfg Config) {
	mu.Lock()
	C = cfg
	mu.Unlock()
}
