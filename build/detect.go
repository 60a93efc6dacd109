package build

import (
	"errors"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// enough for zip and epub signatures
const headerSize = 262

// isArchiveFile checks file content (not name) for zip container signature.
// EPUB is zip as well and handled the same way.
func isArchiveFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	head = head[:n]
	return filetype.Is(head, "epub") || filetype.Is(head, "zip"), nil
}
