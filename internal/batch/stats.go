package batch

// Stats contains statistics from an extraction run.
type Stats struct {
	// Files is the number of file entries written.
	Files int

	// Dirs is the number of directory entries created.
	Dirs int

	// Skipped is the number of entries skipped (ShouldProcess returned false).
	Skipped int

	// TotalBytes is the sum of UncompressedSize for all written files.
	TotalBytes uint64
}

// AddFile records one written file of the given size.
func (s *Stats) AddFile(size uint64) {
	s.Files++
	s.TotalBytes += size
}

// Processed returns the number of entries materialized.
func (s *Stats) Processed() int {
	return s.Files + s.Dirs
}
