// Package zipfmt encodes and decodes the fixed ZIP records: the local file
// header, the central directory file header and the end of central directory
// record. It also converts between time.Time and MS-DOS date/time and
// between fs.FileMode and external attributes.
//
// All multi-byte fields are little endian. ZIP64 records are not produced;
// decoders report ErrZip64 when they meet ZIP64 sentinel values.
package zipfmt
