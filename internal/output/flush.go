package output

import "io"

// flushIfPossible pushes buffered output through for writers that buffer,
// such as *bufio.Writer. Streaming formats call it after every event so a
// consumer tailing the output sees each line as soon as it is written.
func flushIfPossible(w io.Writer) error {
	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}
