package testutil

import (
	"errors"
	"io"
)

// ErrSimulated is a sentinel error for testing error handling paths
var ErrSimulated = errors.New("simulated error for testing")

// FailingReader отдаёт первые n байт из r, затем возвращает ErrSimulated.
func FailingReader(r io.Reader, n int64) io.Reader {
	return io.MultiReader(io.LimitReader(r, n), &errReader{err: ErrSimulated})
}

type errReader struct {
	err error
}

func (e *errReader) Read([]byte) (int, error) {
	return 0, e.err
}
