package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/ziparchive"
)

var errUsage = errors.New("usage")

// tool runs one subcommand against the archive library.
type tool struct {
	out    io.Writer
	logger *slog.Logger
	level  int
	method ziparchive.Method
	skip   bool
}

func (t *tool) run(cmd string, args []string) error {
	switch cmd {
	case "create":
		return t.add(ziparchive.ModeWrite, args)
	case "append":
		return t.add(ziparchive.ModeAppend, args)
	case "extract":
		if len(args) != 2 {
			return fmt.Errorf("%w: extract <zip> <dir>", errUsage)
		}
		return t.extract(args[0], args[1])
	case "cat":
		if len(args) != 2 {
			return fmt.Errorf("%w: cat <zip> <name>", errUsage)
		}
		return t.cat(args[0], args[1])
	case "fread":
		if len(args) != 3 {
			return fmt.Errorf("%w: fread <zip> <name> <dest>", errUsage)
		}
		return t.fread(args[0], args[1], args[2])
	case "list":
		if len(args) != 1 {
			return fmt.Errorf("%w: list <zip>", errUsage)
		}
		return t.list(args[0])
	case "compress":
		if len(args) != 2 {
			return fmt.Errorf("%w: compress <zip> <dir>", errUsage)
		}
		return t.compress(args[0], args[1])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (t *tool) options() []ziparchive.Option {
	opts := []ziparchive.Option{
		ziparchive.WithLogger(t.logger),
		ziparchive.WithMethod(t.method),
	}
	if t.skip {
		opts = append(opts, ziparchive.WithSkipCompression(ziparchive.DefaultSkipCompression()))
	}
	return opts
}

func (t *tool) open(path string, mode ziparchive.Mode) (*ziparchive.Archive, error) {
	return ziparchive.Open(path, t.level, mode, t.options()...)
}

// entrySpec is one "<name>=<file>[,<file>...]" argument. The files are
// concatenated into a single entry. A bare "<file>" uses its base name.
type entrySpec struct {
	name  string
	files []string
}

func parseEntrySpec(arg string) (entrySpec, error) {
	name, list, ok := strings.Cut(arg, "=")
	if !ok {
		return entrySpec{name: filepath.Base(arg), files: []string{arg}}, nil
	}
	if name == "" {
		return entrySpec{}, fmt.Errorf("%w: empty entry name in %q", errUsage, arg)
	}
	var files []string
	for f := range strings.SplitSeq(list, ",") {
		if f != "" {
			files = append(files, f)
		}
	}
	return entrySpec{name: name, files: files}, nil
}

func (t *tool) add(mode ziparchive.Mode, args []string) (err error) {
	if len(args) < 1 {
		return fmt.Errorf("%w: %v <zip> <name>=<file>...", errUsage, mode)
	}
	specs := make([]entrySpec, 0, len(args)-1)
	for _, arg := range args[1:] {
		spec, err := parseEntrySpec(arg)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	a, err := t.open(args[0], mode)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	for _, spec := range specs {
		if err := a.OpenEntry(spec.name); err != nil {
			return err
		}
		for _, f := range spec.files {
			if err := a.WriteFile(f); err != nil {
				return errors.Join(fmt.Errorf("%s: %w", spec.name, err), a.AbortEntry())
			}
		}
		if err := a.CloseEntry(); err != nil {
			return err
		}
		fmt.Fprintf(t.out, "Added: %s\n", spec.name)
	}
	return nil
}

func (t *tool) extract(zipPath, dir string) error {
	stats, err := ziparchive.Extract(zipPath, dir, func(name string, ordinal, total int) error {
		fmt.Fprintf(t.out, "Extracted: %s (%d of %d)\n", name, ordinal, total)
		return nil
	}, ziparchive.ExtractWithArchiveOptions(ziparchive.WithLogger(t.logger)))
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "%d files, %d directories, %s\n", stats.Files, stats.Dirs, humanize.IBytes(stats.TotalBytes))
	return nil
}

func (t *tool) cat(zipPath, name string) (err error) {
	a, err := t.open(zipPath, ziparchive.ModeRead)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	if err := a.OpenEntry(name); err != nil {
		return err
	}
	data, err := a.ReadAll()
	if err != nil {
		return err
	}
	if _, err := t.out.Write(data); err != nil {
		return err
	}
	return a.CloseEntry()
}

func (t *tool) fread(zipPath, name, dest string) (err error) {
	a, err := t.open(zipPath, ziparchive.ModeRead)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	if err := a.OpenEntry(name); err != nil {
		return err
	}
	if err := a.ReadToFile(dest); err != nil {
		return err
	}
	size, err := a.Size()
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Wrote %s (%s)\n", dest, humanize.IBytes(size))
	return a.CloseEntry()
}

func (t *tool) list(zipPath string) (err error) {
	a, err := t.open(zipPath, ziparchive.ModeRead)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	var total, stored uint64
	for i, rec := range a.Entries() {
		kind := "file"
		if rec.IsDir() {
			kind = "dir"
		}
		fmt.Fprintf(t.out, "%4d  %-4s %-7s %10s %10s  %08x  %s\n",
			i, kind, rec.Method,
			humanize.IBytes(rec.UncompressedSize),
			humanize.IBytes(rec.CompressedSize),
			rec.CRC32, rec.Name)
		total += rec.UncompressedSize
		stored += rec.CompressedSize
	}

	dgst, err := fileDigest(zipPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "%d entries, %s (%s stored)\n", a.EntryCount(), humanize.IBytes(total), humanize.IBytes(stored))
	if c := a.Comment(); c != "" {
		fmt.Fprintf(t.out, "comment: %s\n", c)
	}
	fmt.Fprintf(t.out, "digest: %s\n", dgst)
	return nil
}

// fileDigest returns the sha256 digest of the archive file.
func fileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.SHA256.FromReader(f)
}

func (t *tool) compress(zipPath, dir string) (err error) {
	a, err := t.open(zipPath, ziparchive.ModeWrite)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	w := &walker{archive: a, logger: t.logger, exclude: zipPath}
	n, err := w.addTree(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Compressed %d entries from %s\n", n, dir)
	return nil
}
