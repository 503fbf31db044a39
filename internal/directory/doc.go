// Package directory is the central directory manager of an archive.
//
// A Directory holds the ordered entry records of one archive. It is loaded
// from an existing container's trailing central directory, grows append-only
// as entries are committed, and serializes itself back as central directory
// headers followed by the end of central directory record.
package directory
