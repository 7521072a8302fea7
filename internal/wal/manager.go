// Package wal is the write-ahead log the buffer pool logs dirty page images
// to before they are written back to the disk manager.
package wal

import (
	"bufio"
	"errors"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/emberdb/emberdb/internal/bufferpool"
	"github.com/emberdb/emberdb/pkg/bx"
)

var (
	ErrBadMagic  = errors.New("wal: bad magic")
	ErrBadCRC    = errors.New("wal: bad crc")
	ErrBadRecord = errors.New("wal: bad record")
	ErrShortRead = errors.New("wal: short read")
	ErrNoWALFile = errors.New("wal: wal file not found")
)

const (
	magicU32   uint32 = 0x4C41574E // "NWAL"
	versionU16        = 1

	recPageImage uint8 = 1

	// fixed is the size, in bytes, of every record's header preceding its
	// page payload: magic(4) ver(2) typ(1) rsv(1) totalLen(4) crc(4) lsn(8)
	// pageID(8).
	fixed = 4 + 2 + 1 + 1 + 4 + 4 + 8 + 8
)

// PageWriter is the minimal surface Recover needs to replay redo images.
// bufferpool.DiskManager satisfies it, so recovery writes straight through
// the same disk manager the buffer pool itself uses.
type PageWriter interface {
	WritePage(id bufferpool.PageID, data []byte) error
}

// Manager is an append-only, CRC32-checked log of buffer-pool page images,
// addressed against the single disk manager an emberdb process owns. It
// satisfies bufferpool.LogManager.
type Manager struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	lsn     uint64
	flushed uint64
}

// Open creates or reopens the log file under dir, resuming LSN numbering
// from the highest LSN found in any existing records.
func Open(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "wal.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	m := &Manager{f: f, path: path}
	_ = m.resumeLSN()
	return m, nil
}

func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}

// LogPageWrite appends id's full-page redo image and returns the LSN
// assigned to the record. It is the buffer pool's write-ahead hook: called
// with a frame's buffer immediately before that buffer is written to disk.
func (m *Manager) LogPageWrite(id bufferpool.PageID, page []byte) (uint64, error) {
	if len(page) != bufferpool.PageSize {
		return 0, ErrBadRecord
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.f == nil {
		return 0, ErrNoWALFile
	}

	m.lsn++
	lsn := m.lsn

	totalLen := fixed + bufferpool.PageSize
	buf := make([]byte, totalLen)
	off := 0

	putU32 := func(v uint32) { bx.PutU32(buf[off:off+4], v); off += 4 }
	putU16 := func(v uint16) { bx.PutU16(buf[off:off+2], v); off += 2 }
	putU64 := func(v uint64) { bx.PutU64(buf[off:off+8], v); off += 8 }
	putU8 := func(v uint8) { buf[off] = v; off++ }

	putU32(magicU32)
	putU16(versionU16)
	putU8(recPageImage)
	putU8(0) // reserved

	putU32(uint32(totalLen))

	crcOff := off
	putU32(0) // crc placeholder

	putU64(lsn)
	putU64(uint64(id))

	copy(buf[off:], page)
	off += bufferpool.PageSize

	crc := crc32.ChecksumIEEE(buf[crcOff+4:])
	bx.PutU32(buf[crcOff:crcOff+4], crc)

	if _, err := m.f.Write(buf); err != nil {
		return 0, err
	}
	return lsn, nil
}

// Flush durably persists every record appended so far, provided upto is
// newer than the highest LSN already flushed. An upto of 0, or one at or
// below the highest flushed LSN, is a no-op.
func (m *Manager) Flush(upto uint64) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	if upto == 0 || upto <= m.flushed {
		return nil
	}
	if err := m.f.Sync(); err != nil {
		return err
	}
	m.flushed = upto
	return nil
}

// Recover replays every logged page image against writer, in log order.
// Called once at startup, before the buffer pool serves any page, to redo
// writes that were logged but never made it to the disk manager.
func (m *Manager) Recover(writer PageWriter) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	path := m.path
	m.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 1<<20)

	for {
		rec, err := readOne(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// A torn tail record means the process crashed mid-append; the
			// unflushed partial write is discarded, not an error.
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrShortRead) {
				return nil
			}
			return err
		}
		if err := writer.WritePage(rec.pageID, rec.page); err != nil {
			return err
		}
	}
}

type decodedRecord struct {
	lsn    uint64
	pageID bufferpool.PageID
	page   []byte
}

func readOne(r *bufio.Reader) (*decodedRecord, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if bx.U32(hdr[:]) != magicU32 {
		return nil, ErrBadMagic
	}

	var verB [2]byte
	if _, err := io.ReadFull(r, verB[:]); err != nil {
		return nil, err
	}
	if bx.U16(verB[:]) != versionU16 {
		return nil, ErrBadRecord
	}

	typ, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if typ != recPageImage {
		return nil, ErrBadRecord
	}
	if _, err := r.ReadByte(); err != nil { // reserved
		return nil, err
	}

	var lenB [4]byte
	if _, err := io.ReadFull(r, lenB[:]); err != nil {
		return nil, err
	}
	totalLen := bx.U32(lenB[:])
	if totalLen != uint32(fixed+bufferpool.PageSize) {
		return nil, ErrBadRecord
	}

	var crcB [4]byte
	if _, err := io.ReadFull(r, crcB[:]); err != nil {
		return nil, err
	}
	wantCRC := bx.U32(crcB[:])

	rest := make([]byte, int(totalLen)-(4+2+1+1+4+4))
	if _, err := io.ReadFull(r, rest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrShortRead
		}
		return nil, err
	}
	if gotCRC := crc32.ChecksumIEEE(rest); gotCRC != wantCRC {
		return nil, ErrBadCRC
	}

	lsn := bx.U64(rest[0:8])
	pageID := bufferpool.PageID(bx.U64(rest[8:16]))
	page := make([]byte, bufferpool.PageSize)
	copy(page, rest[16:16+bufferpool.PageSize])

	return &decodedRecord{lsn: lsn, pageID: pageID, page: page}, nil
}

func (m *Manager) resumeLSN() error {
	f, err := os.Open(m.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReaderSize(f, 1<<20)
	var last uint64

	for {
		rec, err := readOne(r)
		if err != nil {
			break
		}
		if rec.lsn > last {
			last = rec.lsn
		}
	}

	if last > 0 {
		m.lsn = last
		m.flushed = last
	}
	return nil
}
