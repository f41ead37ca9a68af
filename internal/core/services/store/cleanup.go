package store

import (
	"fmt"
	"os"

	"github.com/iamNilotpal/dataqueue/pkg/errors"
)

type cleanupAction string

const (
	actionDelete  cleanupAction = "delete"
	actionArchive cleanupAction = "archive"
)

type cleanupTask struct {
	base   uint64
	path   string
	action cleanupAction
}

// Selects sealed segments whose every record is below the marker. The active
// segment is never a candidate. Segments that failed earlier are selected
// again, which is how failures get retried.
func (s *Store[T]) cleanupCandidatesLocked() []cleanupTask {
	var action cleanupAction
	switch {
	case s.opts.DeleteConsumedSegments:
		action = actionDelete
	case s.opts.ArchiveConsumedSegments:
		action = actionArchive
	default:
		return nil
	}

	var tasks []cleanupTask
	for _, seg := range s.segments[:len(s.segments)-1] {
		if seg.end() > s.marker {
			break
		}
		if action == actionArchive && seg.archived {
			continue
		}
		tasks = append(tasks, cleanupTask{base: seg.base, path: seg.path, action: action})
	}
	return tasks
}

// Runs cleanup tasks outside the store lock. Failures are logged and
// counted, never returned.
func (s *Store[T]) cleanup(tasks []cleanupTask) {
	if len(tasks) == 0 {
		return
	}

	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	for _, task := range tasks {
		var err error
		switch task.action {
		case actionDelete:
			err = s.deleteSegment(task)
		case actionArchive:
			err = s.archiveSegment(task)
		}

		if err != nil {
			s.metrics.CleanupErrors.Inc()
			s.log.Warnw(
				"consumed segment cleanup failed, will retry",
				"action", task.action, "path", task.path,
				"error", errors.NewQueueError(errors.ErrorCleanup, string(task.action), err),
			)
			continue
		}

		s.metrics.SegmentsRemoved.WithLabelValues(string(task.action)).Inc()
		s.log.Infow("cleaned up consumed segment", "action", task.action, "path", task.path)
	}
}

func (s *Store[T]) deleteSegment(task cleanupTask) error {
	if err := s.fs.DeleteFile(task.path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.segments = removeSegment(s.segments, task.base)
	if s.cursor.base == task.base {
		s.cursor = readCursor{}
	}
	return nil
}

// Compresses a consumed segment into "<path><ext>". The archive is written
// under a temporary name and renamed into place before the plain file is
// removed, so at every point one complete copy exists on disk.
func (s *Store[T]) archiveSegment(task cleanupTask) error {
	archivePath := task.path + s.compressor.Extension()
	tmpPath := archivePath + ".tmp"

	if err := s.compressFile(task.path, tmpPath); err != nil {
		if rmErr := s.fs.DeleteFile(tmpPath); rmErr != nil {
			s.log.Warnw("failed to remove partial archive", "path", tmpPath, "error", rmErr)
		}
		return err
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		return fmt.Errorf("failed to publish archive : %w", err)
	}

	s.mu.Lock()
	for _, seg := range s.segments {
		if seg.base == task.base {
			seg.path = archivePath
			seg.archived = true
		}
	}
	if s.cursor.base == task.base {
		s.cursor = readCursor{}
	}
	s.mu.Unlock()

	// Reopen prefers the plain file if this fails, and both copies hold
	// the same records.
	if err := s.fs.DeleteFile(task.path); err != nil {
		s.log.Warnw("failed to remove archived plain segment", "path", task.path, "error", err)
	}
	return nil
}

func (s *Store[T]) compressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := s.compressor.Compress(dst, src); err != nil {
		dst.Close()
		return err
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func removeSegment(segments []*segment, base uint64) []*segment {
	for i, seg := range segments {
		if seg.base == base {
			return append(segments[:i], segments[i+1:]...)
		}
	}
	return segments
}
