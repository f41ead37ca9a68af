// Package store implements the persistent queue store: newline-delimited
// records spread over size-rotated segment files, plus a durable marker that
// counts the records already consumed.
package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/iamNilotpal/dataqueue/internal/adapters/charset"
	"github.com/iamNilotpal/dataqueue/internal/adapters/compression"
	"github.com/iamNilotpal/dataqueue/internal/adapters/fs"
	"github.com/iamNilotpal/dataqueue/internal/core/domain"
	"github.com/iamNilotpal/dataqueue/internal/core/ports"
	"github.com/iamNilotpal/dataqueue/internal/metrics"
	"github.com/iamNilotpal/dataqueue/pkg/errors"
	"github.com/iamNilotpal/dataqueue/pkg/pool"
	"go.uber.org/zap"
)

// Store is the on-disk log of one queue. All methods are safe for
// concurrent use; ReadBatch and AdvanceMarker are expected to be driven by a
// single consumer.
type Store[T any] struct {
	// Configuration and collaborators.
	opts       *domain.StoreOptions
	fs         ports.FileSystemPort
	codec      ports.Codec[T]
	charset    *charset.Transcoder
	compressor ports.CompressionPort // Nil unless consumed segments are archived.
	linePool   *pool.LinePool
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics

	dir        string // Directory holding segments and marker.
	name       string // Queue name, the base of every file name.
	markerPath string

	// Guards everything below.
	mu           sync.Mutex
	segments     []*segment // Ordered by base offset; the last one is active.
	writePointer uint64
	marker       uint64
	pending      pendingBatch // End of the last batch handed out by ReadBatch.
	cursor       readCursor   // Byte position of offset cursor.offset, if known.
	closed       bool

	// Serializes consumed-segment cleanup.
	cleanupMu sync.Mutex
}

type pendingBatch struct {
	end   uint64
	valid bool
}

// readCursor caches where the next sequential read starts so a drain does
// not rescan the active segment from the beginning on every batch.
type readCursor struct {
	offset uint64
	base   uint64
	pos    int64
	valid  bool
}

// Open opens or creates the store described by opts. Existing segments are
// scanned to rebuild the write pointer and the marker is loaded from disk,
// or created as 0.
//
// Returns an error if:
//   - The options are invalid.
//   - The text encoding is unknown or not ASCII compatible.
//   - The directory, segments or marker cannot be read or created.
func Open[T any](
	opts *domain.StoreOptions, codec ports.Codec[T], log *zap.SugaredLogger, m *metrics.Metrics,
) (*Store[T], error) {
	if opts == nil {
		return nil, errors.NewValidationError("options", nil, fmt.Errorf("store options are required"))
	}
	if codec == nil {
		return nil, errors.NewValidationError("codec", nil, fmt.Errorf("codec is required"))
	}

	opts = prepareDefaults(opts)
	if err := Validate(opts); err != nil {
		return nil, err
	}

	transcoder, err := charset.Lookup(opts.Encoding)
	if err != nil {
		return nil, errors.NewValidationError("encoding", opts.Encoding, err)
	}

	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, errors.NewValidationError("path", opts.Path, err)
	}

	name := filepath.Base(path)
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.New(nil, name)
	}

	s := &Store[T]{
		opts:       opts,
		fs:         fs.NewLocalFileSystem(),
		codec:      codec,
		charset:    transcoder,
		linePool:   pool.NewLinePool(1024, opts.BufferSize),
		log:        log.With("queue", name),
		metrics:    m,
		dir:        filepath.Dir(path),
		name:       name,
		markerPath: filepath.Join(filepath.Dir(path), name+markerExtension),
	}

	if opts.ArchiveConsumedSegments && !opts.DeleteConsumedSegments {
		s.compressor, err = compression.NewZstdCompression(opts.CompressionOptions)
		if err != nil {
			return nil, fmt.Errorf("error creating compressor : %w", err)
		}
	}

	if err := s.load(); err != nil {
		s.closeQuietly()
		return nil, err
	}

	s.metrics.Marker.Set(float64(s.marker))
	s.metrics.WritePointer.Set(float64(s.writePointer))
	s.log.Infow(
		"opened queue store",
		"dir", s.dir, "segments", len(s.segments), "marker", s.marker, "writePointer", s.writePointer,
		"encoding", s.charset.Name(), "format", s.codec.Name(),
	)

	return s, nil
}

// Loads the marker and the existing segments, creating whatever is missing.
func (s *Store[T]) load() error {
	if err := s.fs.CreateDir(s.dir, 0755); err != nil {
		return errors.NewQueueError(errors.ErrorStorage, "open", err)
	}

	marker, found, err := loadMarker(s.fs, s.markerPath)
	if err != nil {
		return errors.NewQueueError(errors.ErrorMarker, "open", err)
	}
	if !found {
		if err := persistMarker(s.fs, s.markerPath, 0); err != nil {
			return errors.NewQueueError(errors.ErrorMarker, "open", err)
		}
	}
	s.marker = marker

	segments, err := s.discoverSegments()
	if err != nil {
		return errors.NewQueueError(errors.ErrorStorage, "open", err)
	}

	// An empty queue, or one whose only remaining segment is an archive,
	// starts a fresh active segment at the end of the log. With no
	// segments at all the log resumes at the marker so marker <= writePointer.
	if len(segments) == 0 || segments[len(segments)-1].archived {
		base := marker
		if len(segments) > 0 {
			base = segments[len(segments)-1].end()
		}
		segments = append(segments, &segment{base: base, path: segmentPath(s.dir, s.name, base)})
	}

	active := segments[len(segments)-1]
	if err := s.openActive(active); err != nil {
		return errors.NewQueueError(errors.ErrorStorage, "open", err)
	}

	s.segments = segments
	s.writePointer = active.end()

	if s.marker > s.writePointer {
		s.log.Warnw("marker is ahead of the write pointer", "marker", s.marker, "writePointer", s.writePointer)
	}
	return nil
}

// Lists, orders and scans the segment files of the queue.
func (s *Store[T]) discoverSegments() ([]*segment, error) {
	archiveExt := compression.ArchiveExtension
	files, err := s.fs.ReadDir(filepath.Join(s.dir, s.name+"-*"+segmentExtension+"*"))
	if err != nil {
		return nil, err
	}

	byBase := make(map[uint64]*segment, len(files))
	for _, file := range files {
		base, archived, ok := parseSegmentFileName(s.name, filepath.Base(file), archiveExt)
		if !ok {
			continue
		}

		if existing, dup := byBase[base]; dup {
			// A crash between writing an archive and removing the plain file
			// leaves both. The plain file is authoritative.
			leftover := file
			if !archived {
				leftover = existing.path
				existing.path, existing.archived = file, false
			}
			if err := s.fs.DeleteFile(leftover); err != nil {
				s.log.Warnw("failed to remove duplicate archive", "path", leftover, "error", err)
			}
			continue
		}
		byBase[base] = &segment{base: base, path: file, archived: archived}
	}

	segments := make([]*segment, 0, len(byBase))
	for _, seg := range byBase {
		segments = append(segments, seg)
	}
	slices.SortFunc(segments, func(a, b *segment) int {
		switch {
		case a.base < b.base:
			return -1
		case a.base > b.base:
			return 1
		}
		return 0
	})

	for i, seg := range segments {
		if err := s.scanSegment(seg, i == len(segments)-1); err != nil {
			return nil, err
		}
		if i > 0 && segments[i-1].end() != seg.base {
			s.log.Warnw(
				"gap between segments", "previousEnd", segments[i-1].end(), "base", seg.base, "path", seg.path,
			)
		}
	}

	return segments, nil
}

// Counts the records of a segment. A torn trailing line in the last
// segment, left by a crash mid-append, is truncated away.
func (s *Store[T]) scanSegment(seg *segment, last bool) error {
	file, err := os.Open(seg.path)
	if err != nil {
		return fmt.Errorf("failed to open segment %s : %w", seg.path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if seg.archived {
		if s.compressor == nil {
			s.compressor, err = compression.NewZstdCompression(compression.DefaultOptions())
			if err != nil {
				return err
			}
		}
		decompressed, err := s.compressor.NewReader(file)
		if err != nil {
			return err
		}
		defer decompressed.Close()
		reader = decompressed
	}

	result, err := scanLines(reader)
	if err != nil {
		return fmt.Errorf("failed to scan segment %s : %w", seg.path, err)
	}

	seg.records = result.records
	seg.size = result.validSize

	if result.totalSize > result.validSize {
		s.log.Warnw(
			"discarding torn record at end of segment",
			"path", seg.path, "validSize", result.validSize, "size", result.totalSize,
		)
		if last && !seg.archived {
			if err := os.Truncate(seg.path, result.validSize); err != nil {
				return fmt.Errorf("failed to truncate torn segment %s : %w", seg.path, err)
			}
		}
	}

	return nil
}

// Opens seg for appending with a buffered writer.
func (s *Store[T]) openActive(seg *segment) error {
	file, err := os.OpenFile(seg.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("error creating segment file : %w", err)
	}

	seg.file = file
	seg.writer = bufio.NewWriterSize(file, s.opts.BufferSize)
	return nil
}

// Append encodes record and appends it as one line to the active segment,
// rotating first when the line would push a non-empty segment past
// MaxSegmentSize. The line is flushed, and unless fsync is disabled synced,
// before Append returns.
func (s *Store[T]) Append(record T) error {
	encoded, err := s.codec.Encode(record)
	if err != nil {
		s.metrics.AppendErrors.Inc()
		return errors.NewQueueError(errors.ErrorCodec, "append", err)
	}

	line, err := s.charset.Encode(encoded)
	if err != nil {
		s.metrics.AppendErrors.Inc()
		return errors.NewQueueError(errors.ErrorCodec, "append", err)
	}

	buffer := s.linePool.Line(line)
	defer s.linePool.Release(buffer)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStoreClosed
	}

	if s.shouldRotateLocked(int64(buffer.Len())) {
		if err := s.rotateLocked(); err != nil {
			s.metrics.AppendErrors.Inc()
			return errors.NewQueueError(errors.ErrorStorage, "rotate", err)
		}
	}

	active := s.activeLocked()
	if err := s.writeLocked(active, buffer.Bytes()); err != nil {
		s.metrics.AppendErrors.Inc()
		return errors.NewQueueError(errors.ErrorStorage, "append", err)
	}

	active.records++
	active.size += int64(buffer.Len())
	s.writePointer++

	s.metrics.AppendedRecords.Inc()
	s.metrics.AppendedBytes.Add(float64(buffer.Len()))
	s.metrics.WritePointer.Set(float64(s.writePointer))
	return nil
}

// Writes a complete line to the active segment. On failure the file is
// truncated back to its last complete record so a later append never lands
// behind a partial line.
func (s *Store[T]) writeLocked(active *segment, line []byte) error {
	if _, err := active.writer.Write(line); err != nil {
		return s.rollbackLocked(active, fmt.Errorf("failed to write record : %w", err))
	}

	if err := active.writer.Flush(); err != nil {
		return s.rollbackLocked(active, fmt.Errorf("failed to flush buffer : %w", err))
	}

	if !s.opts.DisableFsync {
		if err := active.file.Sync(); err != nil {
			return s.rollbackLocked(active, fmt.Errorf("failed to sync file : %w", err))
		}
	}

	return nil
}

func (s *Store[T]) rollbackLocked(active *segment, cause error) error {
	active.writer.Reset(active.file)
	if err := active.file.Truncate(active.size); err != nil {
		s.log.Errorw("failed to roll back partial append", "path", active.path, "error", err)
	}
	return cause
}

func (s *Store[T]) shouldRotateLocked(lineSize int64) bool {
	if s.opts.MaxSegmentSize <= 0 {
		return false
	}

	active := s.activeLocked()
	return active.records > 0 && active.size+lineSize > s.opts.MaxSegmentSize
}

// Seals the active segment and makes a new one, starting at the write
// pointer, the write target. The new file is created before the old one is
// closed so a failure leaves the current segment usable.
func (s *Store[T]) rotateLocked() error {
	current := s.activeLocked()
	next := &segment{base: s.writePointer, path: segmentPath(s.dir, s.name, s.writePointer)}

	if err := s.openActive(next); err != nil {
		return err
	}

	if err := s.sealLocked(current); err != nil {
		next.file.Close()
		if err := s.fs.DeleteFile(next.path); err != nil {
			s.log.Warnw("failed to remove unused segment", "path", next.path, "error", err)
		}
		return err
	}

	s.segments = append(s.segments, next)
	s.metrics.SegmentRotations.Inc()
	s.log.Infow("rotated segment", "sealed", current.path, "records", current.records, "active", next.path)
	return nil
}

// Flushes, syncs and closes the writer of a segment.
func (s *Store[T]) sealLocked(seg *segment) error {
	if seg.file == nil {
		return nil
	}

	if err := seg.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer : %w", err)
	}
	if err := seg.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file : %w", err)
	}
	if err := seg.file.Close(); err != nil {
		return fmt.Errorf("error closing file : %w", err)
	}

	seg.file, seg.writer = nil, nil
	return nil
}

func (s *Store[T]) activeLocked() *segment {
	return s.segments[len(s.segments)-1]
}

// HasUnreadData reports whether the marker is behind the write pointer.
func (s *Store[T]) HasUnreadData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker < s.writePointer
}

// ReadBatch returns up to maxCount records starting at the marker, in write
// order, never beyond the write pointer observed when the call started. The
// marker is left untouched; AdvanceMarker commits the batch.
//
// A line that cannot be decoded fails the whole call and nothing is
// remembered for AdvanceMarker.
func (s *Store[T]) ReadBatch(maxCount int) ([]T, error) {
	if maxCount <= 0 {
		return nil, errors.NewValidationError("maxCount", maxCount, fmt.Errorf("max count must be greater than 0"))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.ErrStoreClosed
	}

	marker, end := s.marker, s.writePointer
	if marker >= end {
		s.pending = pendingBatch{}
		s.mu.Unlock()
		return []T{}, nil
	}

	views := make([]segmentView, 0, len(s.segments))
	for _, seg := range s.segments {
		if seg.end() > marker {
			views = append(views, segmentView{base: seg.base, records: seg.records, path: seg.path, archived: seg.archived})
		}
	}
	cursor := s.cursor
	s.mu.Unlock()

	start := marker
	if len(views) > 0 && start < views[0].base {
		s.log.Warnw(
			"marker precedes the oldest retained record, resuming at the oldest record",
			"marker", marker, "oldest", views[0].base,
		)
		start = views[0].base
	}

	limit := end - start
	if limit > uint64(maxCount) {
		limit = uint64(maxCount)
	}

	records, next, err := s.readRange(views, start, start+limit, cursor)
	if err != nil {
		s.metrics.ReadErrors.Inc()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent SetMarker invalidates what was just read.
	if s.marker == marker && !s.closed {
		s.pending = pendingBatch{end: start + uint64(len(records)), valid: true}
		s.cursor = next
	}
	return records, nil
}

// Reads and decodes records [from, to) out of the given segments.
func (s *Store[T]) readRange(views []segmentView, from, to uint64, cursor readCursor) ([]T, readCursor, error) {
	records := make([]T, 0, to-from)
	offset := from
	var next readCursor

	for _, view := range views {
		if offset >= to {
			break
		}
		if view.end() <= offset {
			continue
		}

		stop := min(view.end(), to)
		pos, err := s.readSegment(view, offset, stop, cursor, func(line []byte, at uint64) error {
			record, err := s.decode(line)
			if err != nil {
				return errors.NewQueueError(
					errors.ErrorCodec, "read", fmt.Errorf("malformed record at offset %d in %s : %w", at, view.path, err),
				)
			}
			records = append(records, record)
			return nil
		})
		if err != nil {
			return nil, readCursor{}, err
		}

		offset = stop
		if !view.archived && offset < view.end() {
			next = readCursor{offset: offset, base: view.base, pos: pos, valid: true}
		}
	}

	return records, next, nil
}

// Streams lines [from, to) of one segment into fn and returns the byte
// position just after the last line consumed.
func (s *Store[T]) readSegment(
	view segmentView, from, to uint64, cursor readCursor, fn func(line []byte, offset uint64) error,
) (int64, error) {
	file, err := os.Open(view.path)
	if err != nil {
		return 0, errors.NewQueueError(errors.ErrorStorage, "read", fmt.Errorf("failed to open segment : %w", err))
	}
	defer file.Close()

	var pos int64
	offset := view.base
	var reader io.Reader = file

	switch {
	case view.archived:
		decompressed, err := s.compressor.NewReader(file)
		if err != nil {
			return 0, errors.NewQueueError(errors.ErrorStorage, "read", err)
		}
		defer decompressed.Close()
		reader = decompressed
	case cursor.valid && cursor.base == view.base && cursor.offset == from:
		if _, err := file.Seek(cursor.pos, io.SeekStart); err != nil {
			return 0, errors.NewQueueError(errors.ErrorStorage, "read", err)
		}
		pos, offset = cursor.pos, from
	}

	br := bufio.NewReaderSize(reader, 64*1024)
	for ; offset < from; offset++ {
		n, err := skipLine(br)
		pos += n
		if err != nil {
			return 0, errors.NewQueueError(
				errors.ErrorStorage, "read", fmt.Errorf("segment %s ended before offset %d : %w", view.path, from, err),
			)
		}
	}

	for ; offset < to; offset++ {
		line, err := br.ReadBytes('\n')
		pos += int64(len(line))
		if err != nil {
			return 0, errors.NewQueueError(
				errors.ErrorStorage, "read", fmt.Errorf("segment %s ended before offset %d : %w", view.path, offset, err),
			)
		}

		if err := fn(line[:len(line)-1], offset); err != nil {
			return 0, err
		}
	}

	return pos, nil
}

func (s *Store[T]) decode(line []byte) (T, error) {
	decoded, err := s.charset.Decode(line)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.codec.Decode(decoded)
}

// AdvanceMarker moves the marker to the end of the last batch returned by
// ReadBatch, persists it, and then removes or archives segments that became
// fully consumed. It is a no-op when no batch is pending.
func (s *Store[T]) AdvanceMarker() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrStoreClosed
	}

	if !s.pending.valid {
		s.mu.Unlock()
		return nil
	}

	next := s.pending.end
	if err := persistMarker(s.fs, s.markerPath, next); err != nil {
		s.mu.Unlock()
		return errors.NewQueueError(errors.ErrorMarker, "advance", err)
	}

	s.marker = next
	s.pending = pendingBatch{}
	s.metrics.Marker.Set(float64(next))
	candidates := s.cleanupCandidatesLocked()
	s.mu.Unlock()

	s.cleanup(candidates)
	return nil
}

// SetMarker overrides the marker with value and persists it. Nothing checks
// value against the write pointer; this exists for manual recovery only.
func (s *Store[T]) SetMarker(value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStoreClosed
	}

	if err := persistMarker(s.fs, s.markerPath, value); err != nil {
		return errors.NewQueueError(errors.ErrorMarker, "set marker", err)
	}

	s.log.Warnw("marker overridden", "previous", s.marker, "marker", value, "writePointer", s.writePointer)
	s.marker = value
	s.pending = pendingBatch{}
	s.cursor = readCursor{}
	s.metrics.Marker.Set(float64(value))
	return nil
}

// Marker returns the current marker.
func (s *Store[T]) Marker() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker
}

// WritePointer returns the number of records appended over the queue's lifetime.
func (s *Store[T]) WritePointer() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writePointer
}

// Segments describes the retained segments, oldest first.
func (s *Store[T]) Segments() []domain.SegmentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]domain.SegmentInfo, 0, len(s.segments))
	for i, seg := range s.segments {
		infos = append(infos, seg.info(i == len(s.segments)-1))
	}
	return infos
}

// Close flushes, syncs and closes the active segment. Later calls return
// ErrStoreClosed.
func (s *Store[T]) Close() error {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStoreClosed
	}
	s.closed = true

	var err error
	if len(s.segments) > 0 {
		if sealErr := s.sealLocked(s.activeLocked()); sealErr != nil {
			err = errors.NewQueueError(errors.ErrorStorage, "close", sealErr)
		}
	}

	if s.compressor != nil {
		if closeErr := s.compressor.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	s.log.Infow("closed queue store", "marker", s.marker, "writePointer", s.writePointer)
	return err
}

// Releases files after a failed Open.
func (s *Store[T]) closeQuietly() {
	for _, seg := range s.segments {
		if seg.file != nil {
			seg.file.Close()
		}
	}
	if s.compressor != nil {
		s.compressor.Close()
	}
}
