package restore

// SetWriter replaces the file writer, for failure injection in tests.
func (s *Store) SetWriter(fn func(path string, data []byte) error) {
	s.write = fn
}
