package config

import (
	"flag"
	"time"
)

// Config holds instance-level configuration for the service.
type Config struct {
	ListenAddr string
	DSN        string

	RowBatchEventInterval        int
	CommandTimeout               time.Duration
	ArrayElementFallbackToString bool
	StrictSchema                 bool

	StatsWindow   time.Duration
	MaxStatsQueue int
	OutputFile    string

	MaxOpenConns    int
	SeedRows        int
	LogLevel        string
	GracefulTimeout time.Duration
}

// RegisterFlags registers CLI flags and returns a reader that captures them after flag.Parse().
func RegisterFlags() func() Config {
	listenAddr := flag.String("listenAddr", "localhost:8080", "The listen address")
	dsn := flag.String("dsn", "file::memory:?cache=shared", "The sqlite data source name")

	batchInterval := flag.Int("rowBatchEventInterval", 5000, "Rows between row-batch events")
	cmdTimeout := flag.Int("commandTimeout", 30, "Query command timeout in seconds")
	fallbackStr := flag.Bool("arrayElementFallbackToString", true, "Render unsupported values as strings instead of null")
	strict := flag.Bool("strictSchema", false, "Elevate schema mismatches to request failures")

	statsWindow := flag.Duration("statsWindow", 10*time.Second, "Stream stats window duration")
	maxStatsQueue := flag.Int("maxStatsQueue", 10_000, "Max stream stats queue size")
	outFile := flag.String("outputFile", "", "Optional file for stats snapshots (default stdout)")

	maxConns := flag.Int("maxOpenConns", 4, "Max open database connections")
	seedRows := flag.Int("seedRows", 1000, "Synthetic rows to seed at startup (0 disables)")
	logLevel := flag.String("logLevel", "info", "Log level: debug|info|warn|error")
	graceful := flag.Duration("gracefulTimeout", 10*time.Second, "Graceful shutdown timeout")

	return func() Config {
		return Config{
			ListenAddr:                   *listenAddr,
			DSN:                          *dsn,
			RowBatchEventInterval:        *batchInterval,
			CommandTimeout:               time.Duration(*cmdTimeout) * time.Second,
			ArrayElementFallbackToString: *fallbackStr,
			StrictSchema:                 *strict,
			StatsWindow:                  *statsWindow,
			MaxStatsQueue:                *maxStatsQueue,
			OutputFile:                   *outFile,
			MaxOpenConns:                 *maxConns,
			SeedRows:                     *seedRows,
			LogLevel:                     *logLevel,
			GracefulTimeout:              *graceful,
		}
	}
}
