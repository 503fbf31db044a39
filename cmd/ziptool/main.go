// Command ziptool creates, inspects and extracts ZIP archives.
//
// Usage:
//
//	ziptool [flags] create <zip> <name>=<file>[,<file>...]...
//	ziptool [flags] append <zip> <name>=<file>[,<file>...]...
//	ziptool [flags] extract <zip> <dir>
//	ziptool [flags] cat <zip> <name>
//	ziptool [flags] fread <zip> <name> <dest>
//	ziptool [flags] list <zip>
//	ziptool [flags] compress <zip> <dir>
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime/pprof"

	"github.com/felixge/fgprof"

	"github.com/meigma/ziparchive"
)

type config struct {
	level          int
	method         string
	skipCompressed bool
	verbose        bool
	cpuProfile     string
	fgProfile      string
}

func main() {
	cfg := parseFlags()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	method, err := ziparchive.ParseMethod(cfg.method)
	if err != nil {
		log.Fatalf("method: %v", err)
	}

	if cfg.fgProfile != "" {
		fgFile, err := os.Create(cfg.fgProfile)
		if err != nil {
			log.Fatal(err)
		}
		stopFG := fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, err := os.Create(cfg.cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			log.Fatal(err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	t := &tool{
		out:    os.Stdout,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		level:  cfg.level,
		method: method,
		skip:   cfg.skipCompressed,
	}
	if err := t.run(flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is acceptable, profiles are best-effort
	}
}

func parseFlags() config {
	var cfg config
	flag.IntVar(&cfg.level, "level", ziparchive.DefaultCompression, "compression level: -1 default, 0 store, 1-9")
	flag.StringVar(&cfg.method, "method", "deflate", "compression method: store, deflate, zstd or xz")
	flag.BoolVar(&cfg.skipCompressed, "skip-compressed", false, "store files with already-compressed extensions")
	flag.BoolVar(&cfg.verbose, "v", false, "enable debug logging")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `usage: ziptool [flags] <command> [args]

commands:
  create <zip> <name>=<file>[,<file>...]...   write a new archive
  append <zip> <name>=<file>[,<file>...]...   add entries to an archive
  extract <zip> <dir>                         extract every entry
  cat <zip> <name>                            print an entry
  fread <zip> <name> <dest>                   write an entry to a file
  list <zip>                                  list entries
  compress <zip> <dir>                        archive a directory tree

flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()
	return cfg
}
