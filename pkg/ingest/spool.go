package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// spool drains an artifact body into a temporary file and returns its path
// and size. The body is always closed, and the temporary file is removed on
// any failure, including a download broken off mid-stream. Streaming the
// content straight into the repository would avoid the copy, but the
// repository needs the size and MIME type up front, so the file is staged
// locally first. At most one artifact is buffered at a time.
func spool(body io.ReadCloser, relativePath string) (string, int64, error) {
	tmp, err := os.CreateTemp("", "argo-artifact-tmp-"+filepath.Base(relativePath)+"-")
	if err != nil {
		closeQuietly(body)

		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	size, copyErr := io.Copy(tmp, body)
	closeQuietly(body)

	err = tmp.Close()

	if copyErr != nil {
		removeQuietly(tmp.Name())

		return "", 0, fmt.Errorf("failed to download artifact content: %w", copyErr)
	}

	if err != nil {
		removeQuietly(tmp.Name())

		return "", 0, fmt.Errorf("failed to flush temporary file: %w", err)
	}

	return tmp.Name(), size, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
