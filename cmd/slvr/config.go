// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/slvr-lang/slvr"
)

const (
	fuelKey        = "fuel"
	configKey      = "config"
	logLevelKey    = "log-level"
	traceKey       = "trace"
	noOptimizerKey = "no-optimizer"
	dbKey          = "db"
	snapshotKey    = "snapshot"
	callerKey      = "caller"
	txHashKey      = "tx-hash"
	blockHeightKey = "block-height"
	blockTimeKey   = "block-time"
	compressKey    = "compress"
	outputKey      = "output"
	timeoutKey     = "timeout"

	envPrefix = "slvr"

	defaultFuel     uint64 = 1_000_000
	defaultLogLevel        = "info"
	defaultSnapshot        = "main"
)

type config struct {
	Fuel        uint64
	LogLevel    string
	NoOptimizer bool
	DB          string
	Snapshot    string
	Compress    bool
	Output      string
	Timeout     time.Duration
	Context     slvr.ExecutionContext

	traceParser    bool
	traceOptimizer bool
	traceCompiler  bool
}

func buildFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.Uint64(fuelKey, defaultFuel, "Fuel budget of an execution")
	fs.String(configKey, "", "YAML config file")
	fs.String(logLevelKey, defaultLogLevel,
		"Log level: debug, info, warn, error or crit")
	fs.String(traceKey, "",
		"Comma separated units: --trace parser,optimizer,compiler")
	fs.Bool(noOptimizerKey, false, "Disable optimization")
	fs.String(dbKey, "", "SQLite database to load and save the store")
	fs.String(snapshotKey, defaultSnapshot, "Snapshot name in the database")
	fs.String(callerKey, slvr.DefaultExecutionContext().Caller,
		"Caller of the execution context")
	fs.String(txHashKey, slvr.DefaultExecutionContext().TxHash,
		"Transaction hash of the execution context")
	fs.Uint64(blockHeightKey, 0, "Block height of the execution context")
	fs.Int64(blockTimeKey, 0, "Block timestamp of the execution context")
	fs.Bool(compressKey, false, "Compress compiled bytecode with zstd")
	fs.StringP(outputKey, "o", "", "Output file of compile")
	fs.Duration(timeoutKey, 0, "Execution timeout, zero for none")
	return fs
}

// getViper parses args and returns the viper environment of the command.
// Flags override SLVR_* environment variables which override the config
// file.
func getViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if path := v.GetString(configKey); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return v, nil
}

func loadConfig(v *viper.Viper) (*config, error) {
	cfg := &config{
		Fuel:        v.GetUint64(fuelKey),
		LogLevel:    v.GetString(logLevelKey),
		NoOptimizer: v.GetBool(noOptimizerKey),
		DB:          v.GetString(dbKey),
		Snapshot:    v.GetString(snapshotKey),
		Compress:    v.GetBool(compressKey),
		Output:      v.GetString(outputKey),
		Timeout:     v.GetDuration(timeoutKey),
		Context: slvr.ExecutionContext{
			Caller:         v.GetString(callerKey),
			TxHash:         v.GetString(txHashKey),
			BlockHeight:    v.GetUint64(blockHeightKey),
			BlockTimestamp: v.GetInt64(blockTimeKey),
		},
	}
	if cfg.Snapshot == "" {
		cfg.Snapshot = defaultSnapshot
	}

	if trace := v.GetString(traceKey); trace != "" {
		for _, unit := range strings.Split(trace, ",") {
			switch strings.TrimSpace(unit) {
			case "parser":
				cfg.traceParser = true
			case "optimizer":
				cfg.traceOptimizer = true
			case "compiler":
				cfg.traceCompiler = true
			default:
				return nil, fmt.Errorf("unknown trace unit: %s", unit)
			}
		}
	}
	if _, err := log.LvlFromString(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *config) compilerOptions(modulePath string, trace io.Writer) slvr.CompilerOptions {
	opts := slvr.DefaultCompilerOptions
	opts.ModulePath = modulePath
	opts.Optimize = !cfg.NoOptimizer
	if cfg.traceParser || cfg.traceOptimizer || cfg.traceCompiler {
		opts.Trace = trace
		opts.TraceParser = cfg.traceParser
		opts.TraceOptimizer = cfg.traceOptimizer
		opts.TraceCompiler = cfg.traceCompiler
	}
	return opts
}

func (cfg *config) newRuntime() *slvr.Runtime {
	return slvr.NewRuntime(cfg.Fuel, slvr.WithContext(cfg.Context))
}

// newLogger configures the root logger to write to w at the configured
// level.
func (cfg *config) newLogger(w io.Writer) log.Logger {
	lvl, err := log.LvlFromString(cfg.LogLevel)
	if err != nil {
		lvl = log.LvlInfo
	}
	if w == nil {
		w = os.Stderr
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl,
		log.StreamHandler(w, log.TerminalFormat())))
	return log.Root()
}
