package page

import (
	"fmt"
	"os"
	"sync"

	"heapstore/pkg/dberror"
	"heapstore/pkg/primitives"
)

// BaseFile provides page-granular file I/O shared by table file types.
//
// The file has no header: page n occupies bytes [n*Size(), (n+1)*Size()).
// All methods are safe for concurrent use.
type BaseFile struct {
	file     *os.File            // The underlying OS file handle for I/O operations
	tableID  primitives.TableID  // Identifier generated from the file path hash
	mutex    sync.RWMutex        // Guards file and serializes writes and allocation
	filePath primitives.Filepath // Path used to open the file
}

// NewBaseFile opens (creating if needed) the file at filePath.
func NewBaseFile(filePath primitives.Filepath) (*BaseFile, error) {
	if filePath == "" {
		return nil, fmt.Errorf("filePath cannot be empty")
	}

	file, err := openFile(filePath)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeIO, "Open", "BaseFile")
	}

	return &BaseFile{
		file:     file,
		tableID:  filePath.Hash(),
		filePath: filePath,
	}, nil
}

// GetID returns the table id derived from the file path.
func (bf *BaseFile) GetID() primitives.TableID {
	return bf.tableID
}

// FilePath returns the path used to open the file.
func (bf *BaseFile) FilePath() primitives.Filepath {
	return bf.filePath
}

// NumPages returns the number of whole pages in the file. A trailing partial
// page is not counted.
func (bf *BaseFile) NumPages() (primitives.PageNumber, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if bf.file == nil {
		return 0, dberror.Errorf(dberror.ErrClosed, "file %s is closed", bf.filePath)
	}

	fileInfo, err := bf.file.Stat()
	if err != nil {
		return 0, dberror.Wrap(err, dberror.CodeIO, "NumPages", "BaseFile")
	}

	return primitives.PageNumber(fileInfo.Size() / int64(Size())), nil // #nosec G115
}

// ReadPageData reads exactly one page at pageNo. A short read is an IoError.
func (bf *BaseFile) ReadPageData(pageNo primitives.PageNumber) ([]byte, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if bf.file == nil {
		return nil, dberror.Errorf(dberror.ErrClosed, "file %s is closed", bf.filePath)
	}

	size := Size()
	offset := int64(pageNo) * int64(size) // #nosec G115
	pageData := make([]byte, size)

	n, err := bf.file.ReadAt(pageData, offset)
	if n != size {
		return nil, dberror.Wrap(
			fmt.Errorf("short read of page %d: got %d of %d bytes: %w", pageNo, n, size, err),
			dberror.CodeIO, "ReadPageData", "BaseFile")
	}
	return pageData, nil
}

// WritePageData writes one page at pageNo and syncs the file.
func (bf *BaseFile) WritePageData(pageNo primitives.PageNumber, pageData []byte) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return dberror.Errorf(dberror.ErrClosed, "file %s is closed", bf.filePath)
	}

	size := Size()
	if len(pageData) != size {
		return dberror.Errorf(dberror.ErrIO, "invalid page data size: expected %d, got %d", size, len(pageData))
	}

	offset := int64(pageNo) * int64(size) // #nosec G115

	if _, err := bf.file.WriteAt(pageData, offset); err != nil {
		return dberror.Wrap(err, dberror.CodeIO, "WritePageData", "BaseFile")
	}

	if err := bf.file.Sync(); err != nil {
		return dberror.Wrap(err, dberror.CodeIO, "WritePageData", "BaseFile")
	}

	return nil
}

// AllocateNewPage appends a zero-filled page and returns its number.
// Concurrent callers always receive distinct page numbers.
func (bf *BaseFile) AllocateNewPage() (primitives.PageNumber, error) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return 0, dberror.Errorf(dberror.ErrClosed, "file %s is closed", bf.filePath)
	}

	fileInfo, err := bf.file.Stat()
	if err != nil {
		return 0, dberror.Wrap(err, dberror.CodeIO, "AllocateNewPage", "BaseFile")
	}

	size := int64(Size())
	pageNo := fileInfo.Size() / size

	if _, err := bf.file.WriteAt(make([]byte, size), pageNo*size); err != nil {
		return 0, dberror.Wrap(err, dberror.CodeIO, "AllocateNewPage", "BaseFile")
	}

	if err := bf.file.Sync(); err != nil {
		return 0, dberror.Wrap(err, dberror.CodeIO, "AllocateNewPage", "BaseFile")
	}

	return primitives.PageNumber(pageNo), nil // #nosec G115
}

// Close closes the file. Later calls return ErrClosed; closing twice is a no-op.
func (bf *BaseFile) Close() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file != nil {
		err := bf.file.Close()
		bf.file = nil
		return err
	}

	return nil
}

func openFile(filename primitives.Filepath) (*os.File, error) {
	file, err := os.OpenFile(string(filename), os.O_RDWR|os.O_CREATE, 0o644) // #nosec G302 G304
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	return file, nil
}
