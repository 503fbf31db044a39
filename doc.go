// Package ziparchive creates, appends to, reads and extracts ZIP archives.
//
// An Archive is opened in one of three modes:
//   - ModeWrite creates a new archive, truncating any existing file
//   - ModeAppend opens an existing archive and adds entries after the ones
//     it already holds
//   - ModeRead opens an existing archive for reading only
//
// Entries are handled one at a time. OpenEntry starts an entry, Write,
// WriteFrom and WriteFile stream content into it through the compressor,
// and CloseEntry finalizes it and commits its record to the central
// directory. Reading works the same way: OpenEntry or OpenEntryByIndex
// selects an entry and ReadAll, ReadInto or ReadToFile decode it. Every read
// is verified against the recorded length and CRC-32.
//
// Close writes the central directory of a writable archive and releases the
// underlying file. An Archive is not safe for concurrent use.
//
// Entries are stored with deflate by default. Zstandard (method 93) and XZ
// (method 95) can be selected with WithMethod. ZIP64, encryption and
// multi-volume archives are not supported.
package ziparchive
