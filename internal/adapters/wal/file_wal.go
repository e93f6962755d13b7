// Package wal persists operator submissions until the upstream API has
// accepted or rejected them.
package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ghalamif/CityPulse/internal/domain"
	"github.com/ghalamif/CityPulse/internal/ports"
)

// record layout: [8 bytes id][4 bytes len][len bytes JSON reading]
const headerLen = 12

const (
	logName  = "outbox.wal"
	metaName = "outbox.meta"
)

var (
	ErrClosed = errors.New("wal: closed")
	errTorn   = errors.New("wal: torn record")
)

// FileWAL is an append-only log of readings plus a sidecar file holding the
// highest committed entry ID.
type FileWAL struct {
	mu        sync.Mutex
	logPath   string
	metaPath  string
	f         *os.File
	w         *bufio.Writer
	last      ports.WALEntryID
	committed ports.WALEntryID
	size      int64
	closed    bool
}

// NewFileWAL opens (or creates) the WAL in dir. A torn tail left by a crash
// mid-append is cut off.
func NewFileWAL(dir string) (*FileWAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w := &FileWAL{
		logPath:  filepath.Join(dir, logName),
		metaPath: filepath.Join(dir, metaName),
	}
	if err := w.loadMeta(); err != nil {
		return nil, err
	}
	if err := w.recover(); err != nil {
		return nil, err
	}
	if err := w.openForAppend(); err != nil {
		return nil, err
	}
	if w.last < w.committed {
		w.last = w.committed
	}
	return w, nil
}

func (w *FileWAL) recover() error {
	f, err := os.Open(w.logPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	r := bufio.NewReader(f)
	var good int64
	for {
		id, _, n, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if errors.Is(err, errTorn) {
			break
		}
		if err != nil {
			f.Close()
			return fmt.Errorf("wal recover: %w", err)
		}
		good += n
		w.last = id
	}
	f.Close()

	if err := os.Truncate(w.logPath, good); err != nil {
		return err
	}
	w.size = good
	return nil
}

func (w *FileWAL) loadMeta() error {
	data, err := os.ReadFile(w.metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("wal meta: %w", err)
	}
	w.committed = ports.WALEntryID(u)
	return nil
}

func (w *FileWAL) openForAppend() error {
	f, err := os.OpenFile(w.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.w = bufio.NewWriter(f)
	return nil
}

// Append writes r and flushes it to the OS before returning its ID.
func (w *FileWAL) Append(r *domain.SensorReading) (ports.WALEntryID, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("wal encode: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}

	id := w.last + 1
	var hdr [headerLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(payload)))

	if _, err := w.w.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := w.w.Write(payload); err != nil {
		return 0, err
	}
	if err := w.w.Flush(); err != nil {
		return 0, err
	}

	w.last = id
	w.size += int64(headerLen + len(payload))
	return id, nil
}

// Iterate calls fn for every entry with ID >= from, in append order.
func (w *FileWAL) Iterate(from ports.WALEntryID, fn func(id ports.WALEntryID, r *domain.SensorReading) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.w.Flush(); err != nil {
		return err
	}

	f, err := os.Open(w.logPath)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	for {
		id, payload, _, err := readRecord(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("wal iterate: %w", err)
		}
		if id < from {
			continue
		}
		var rd domain.SensorReading
		if err := json.Unmarshal(payload, &rd); err != nil {
			return fmt.Errorf("wal entry %d: %w", id, err)
		}
		if err := fn(id, &rd); err != nil {
			return err
		}
	}
}

// Commit marks every entry up to and including upto as delivered.
func (w *FileWAL) Commit(upto ports.WALEntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if upto <= w.committed {
		return nil
	}
	w.committed = upto
	return w.writeMetaLocked()
}

// Compact rewrites the log without committed entries.
func (w *FileWAL) Compact() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.w.Flush(); err != nil {
		return err
	}

	src, err := os.Open(w.logPath)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(w.logPath), logName+".*")
	if err != nil {
		src.Close()
		return err
	}
	defer os.Remove(tmp.Name())

	br := bufio.NewReader(src)
	bw := bufio.NewWriter(tmp)
	var kept int64
	for {
		id, payload, n, err := readRecord(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			src.Close()
			tmp.Close()
			return fmt.Errorf("wal compact: %w", err)
		}
		if id <= w.committed {
			continue
		}
		var hdr [headerLen]byte
		binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
		binary.BigEndian.PutUint32(hdr[8:12], uint32(len(payload)))
		if _, err := bw.Write(hdr[:]); err != nil {
			src.Close()
			tmp.Close()
			return err
		}
		if _, err := bw.Write(payload); err != nil {
			src.Close()
			tmp.Close()
			return err
		}
		kept += n
	}
	src.Close()
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := w.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), w.logPath); err != nil {
		return err
	}
	w.size = kept
	return w.openForAppend()
}

func (w *FileWAL) Stats() ports.WALStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ports.WALStats{
		OldestUncommitted: w.committed + 1,
		LatestAppended:    w.last,
		SizeBytes:         w.size,
	}
}

func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return errors.Join(w.w.Flush(), w.f.Sync(), w.f.Close())
}

func (w *FileWAL) writeMetaLocked() error {
	tmp := w.metaPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(uint64(w.committed), 10)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, w.metaPath)
}

// readRecord returns io.EOF at a clean end and errTorn for a partial record.
func readRecord(r *bufio.Reader) (ports.WALEntryID, []byte, int64, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return 0, nil, 0, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, 0, errTorn
		}
		return 0, nil, 0, err
	}
	id := ports.WALEntryID(binary.BigEndian.Uint64(hdr[0:8]))
	payload := make([]byte, binary.BigEndian.Uint32(hdr[8:12]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, 0, errTorn
		}
		return 0, nil, 0, err
	}
	return id, payload, int64(headerLen + len(payload)), nil
}

var _ ports.WAL = (*FileWAL)(nil)
