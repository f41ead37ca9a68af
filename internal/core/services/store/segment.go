package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iamNilotpal/dataqueue/internal/core/domain"
)

const (
	segmentExtension = ".log"
	markerExtension  = ".marker"

	// Wide enough for any uint64 so lexical and numeric order agree.
	offsetDigits = 20
)

// segment is one file of the queue. Only the active segment holds an open
// file and writer; sealed segments are opened on demand for reads.
type segment struct {
	base     uint64 // Offset of the first record in the segment.
	records  uint64 // Number of complete records in the segment.
	size     int64  // Bytes of complete records (uncompressed for archives).
	path     string // Current file path, with the archive suffix once archived.
	archived bool   // Set once the segment was compressed.

	file   *os.File      // Active segment only.
	writer *bufio.Writer // Active segment only.
}

func (s *segment) end() uint64 {
	return s.base + s.records
}

func (s *segment) info(active bool) domain.SegmentInfo {
	return domain.SegmentInfo{
		BaseOffset: s.base,
		Records:    s.records,
		Size:       s.size,
		Path:       s.path,
		Active:     active,
		Archived:   s.archived,
	}
}

// segmentView is an immutable copy of a segment used by readers outside the
// store lock.
type segmentView struct {
	base     uint64
	records  uint64
	path     string
	archived bool
}

func (v segmentView) end() uint64 {
	return v.base + v.records
}

// Creates a segment filename by combining the queue name with the zero
// padded base offset. For example: "orders-00000000000000000000.log".
func segmentFileName(name string, base uint64) string {
	return fmt.Sprintf("%s-%0*d%s", name, offsetDigits, base, segmentExtension)
}

// Parses the base offset out of a segment file name and reports whether the
// file is an archive. ok is false for files that do not belong to the queue.
func parseSegmentFileName(name, fileName, archiveExt string) (base uint64, archived bool, ok bool) {
	rest, found := strings.CutPrefix(fileName, name+"-")
	if !found {
		return 0, false, false
	}

	if archiveExt != "" {
		if trimmed, isArchive := strings.CutSuffix(rest, segmentExtension+archiveExt); isArchive {
			rest, archived = trimmed, true
		}
	}
	if !archived {
		trimmed, isSegment := strings.CutSuffix(rest, segmentExtension)
		if !isSegment {
			return 0, false, false
		}
		rest = trimmed
	}

	if len(rest) != offsetDigits {
		return 0, false, false
	}

	base, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false, false
	}
	return base, archived, true
}

// scanResult summarizes the newline-delimited content of a segment.
type scanResult struct {
	records   uint64 // Complete lines.
	validSize int64  // Bytes up to and including the last newline.
	totalSize int64  // Bytes read.
}

// Counts complete lines in r without decoding them.
func scanLines(r io.Reader) (scanResult, error) {
	var result scanResult
	buf := make([]byte, 64*1024)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if last := bytes.LastIndexByte(chunk, '\n'); last >= 0 {
				result.records += uint64(bytes.Count(chunk, []byte{'\n'}))
				result.validSize = result.totalSize + int64(last) + 1
			}
			result.totalSize += int64(n)
		}

		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, err
		}
	}
}

// Discards one line from br. Long lines are skipped without being buffered
// whole.
func skipLine(br *bufio.Reader) (int64, error) {
	var n int64
	for {
		chunk, err := br.ReadSlice('\n')
		n += int64(len(chunk))
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return n, err
	}
}

// Returns the absolute path of a segment inside dir.
func segmentPath(dir, name string, base uint64) string {
	return filepath.Join(dir, segmentFileName(name, base))
}
