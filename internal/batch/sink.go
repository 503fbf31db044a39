// Package batch writes extracted entries to a destination.
//
// Sinks stage content through a Committer so that an entry only becomes
// visible at its final path once its content has been verified.
package batch

import (
	"io"

	"github.com/meigma/ziparchive/internal/ziptype"
)

// Entry is an alias for ziptype.Record.
type Entry = ziptype.Record

// Sink receives decoded and verified entry content during extraction.
type Sink interface {
	// ShouldProcess returns false if this entry should be skipped,
	// for example because the destination already exists.
	ShouldProcess(entry *Entry) (bool, error)

	// Writer returns a writer for the entry's content.
	//
	// The caller will:
	// 1. Write decoded content to the Committer
	// 2. Verify length and CRC-32 against the entry record
	// 3. Call Commit() if verification succeeds, Discard() otherwise
	Writer(entry *Entry) (Committer, error)

	// MakeDir materializes a directory entry.
	MakeDir(entry *Entry) error
}

// Committer is a writer that can be committed or discarded.
//
// Implementations stage writes until Commit is called, for example by
// writing a temp file and renaming it on Commit or deleting it on Discard.
type Committer interface {
	io.Writer

	// Commit finalizes the write, making content available.
	Commit() error

	// Discard aborts the write and cleans up any temporary resources.
	Discard() error
}
