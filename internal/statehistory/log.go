// Package statehistory implements the append-only, block-indexed log
// format the controller uses for its trace log and chain-state log: a
// sequence of {magic, block_id, payload} frames plus a sidecar index of
// (block_num, offset) pairs for O(1) lookup
package statehistory

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pulsevm/pulsevm/internal/chainerr"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

// headerSize is sizeof(magic uint64) + sizeof(block_id [32]byte) +
// sizeof(payload_size uint64).
const headerSize = 8 + 32 + 8

// indexRecordSize is sizeof(block_num uint32) + sizeof(offset uint64).
const indexRecordSize = 4 + 8

// defaultMagic tags every frame this core ever writes; there is only
// ever one on-disk format, so no magic negotiation is needed.
const defaultMagic uint64 = 0x50554c5345534849 // "PULSESHI"

// Log is an append-only, block-ordered binary log with an in-memory
// offset index rebuilt on Open from the sidecar index file, or by
// scanning the log itself when the index file is empty. When the index
// file is not empty, log bytes past the last indexed frame are
// truncated rather than scanned.
type Log struct {
	name    string
	logPath string
	idxPath string

	mu         sync.Mutex
	logFile    *os.File
	idxFile    *os.File
	offsets    map[uint32]int64
	firstBlock uint32
	lastBlock  uint32
	magic      uint64
}

// Open opens (creating if absent) the log and index files "<name>.log"
// and "<name>.index" under dir.
func Open(dir, name string) (*Log, error) {
	return OpenWithMagic(dir, name, defaultMagic)
}

func OpenWithMagic(dir, name string, magic uint64) (*Log, error) {
	logPath := filepath.Join(dir, name+".log")
	idxPath := filepath.Join(dir, name+".index")

	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.Internal, err, "open %s", logPath)
	}
	idxFile, err := os.OpenFile(idxPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		logFile.Close()
		return nil, chainerr.Wrap(chainerr.Internal, err, "open %s", idxPath)
	}

	l := &Log{
		name:    name,
		logPath: logPath,
		idxPath: idxPath,
		logFile: logFile,
		idxFile: idxFile,
		offsets: make(map[uint32]int64),
		magic:   magic,
	}

	if err := l.loadIndex(); err != nil {
		logFile.Close()
		idxFile.Close()
		return nil, err
	}
	if len(l.offsets) == 0 {
		if err := l.scanAndRebuildIndex(); err != nil {
			logFile.Close()
			idxFile.Close()
			return nil, err
		}
	} else if err := l.validateTail(); err != nil {
		logFile.Close()
		idxFile.Close()
		return nil, err
	}

	return l, nil
}

func (l *Log) loadIndex() error {
	buf := make([]byte, indexRecordSize)
	for {
		_, err := io.ReadFull(l.idxFile, buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return chainerr.Wrap(chainerr.Internal, err, "read %s index", l.name)
		}
		block := binary.LittleEndian.Uint32(buf[0:4])
		offset := int64(binary.LittleEndian.Uint64(buf[4:12]))
		l.offsets[block] = offset
		if l.firstBlock == 0 || block < l.firstBlock {
			l.firstBlock = block
		}
		if block > l.lastBlock {
			l.lastBlock = block
		}
	}
	return nil
}

// validateTail re-checks the last indexed entry's header/payload are
// fully present, truncating a torn write left by a prior crash.
func (l *Log) validateTail() error {
	if l.lastBlock == 0 {
		return nil
	}
	pos, ok := l.offsets[l.lastBlock]
	if !ok {
		return nil
	}
	end, err := l.validateEntryAt(pos)
	if err != nil {
		// Drop the unreadable tail entry entirely.
		delete(l.offsets, l.lastBlock)
		return l.logFile.Truncate(pos)
	}
	info, err := l.logFile.Stat()
	if err != nil {
		return chainerr.Wrap(chainerr.Internal, err, "stat %s", l.logPath)
	}
	if end < info.Size() {
		return l.logFile.Truncate(end)
	}
	return nil
}

func (l *Log) scanAndRebuildIndex() error {
	info, err := l.logFile.Stat()
	if err != nil {
		return chainerr.Wrap(chainerr.Internal, err, "stat %s", l.logPath)
	}
	total := info.Size()
	var pos int64
	l.offsets = make(map[uint32]int64)
	l.firstBlock, l.lastBlock = 0, 0
	for pos < total {
		if pos+headerSize > total {
			if err := l.logFile.Truncate(pos); err != nil {
				return err
			}
			break
		}
		h, err := l.readHeaderAt(pos)
		if err != nil {
			if err := l.logFile.Truncate(pos); err != nil {
				return err
			}
			break
		}
		end := pos + headerSize + int64(h.payloadSize)
		if end > total {
			if err := l.logFile.Truncate(pos); err != nil {
				return err
			}
			break
		}
		block := numFromBlockID(h.blockID)
		if l.firstBlock == 0 {
			l.firstBlock = block
		}
		l.lastBlock = block
		l.offsets[block] = pos
		pos = end
	}
	return nil
}

type frameHeader struct {
	magic       uint64
	blockID     xcrypto.Id
	payloadSize uint64
}

func (l *Log) readHeaderAt(pos int64) (frameHeader, error) {
	buf := make([]byte, headerSize)
	if _, err := l.logFile.ReadAt(buf, pos); err != nil {
		return frameHeader{}, chainerr.Wrap(chainerr.Internal, err, "read header at %d", pos)
	}
	var h frameHeader
	h.magic = binary.LittleEndian.Uint64(buf[0:8])
	copy(h.blockID[:], buf[8:40])
	h.payloadSize = binary.LittleEndian.Uint64(buf[40:48])
	if h.magic != l.magic {
		return frameHeader{}, chainerr.New(chainerr.Internal, "bad magic at offset %d: found %#x, expected %#x", pos, h.magic, l.magic)
	}
	return h, nil
}

func (l *Log) validateEntryAt(pos int64) (int64, error) {
	info, err := l.logFile.Stat()
	if err != nil {
		return 0, err
	}
	if pos+headerSize > info.Size() {
		return 0, chainerr.New(chainerr.Internal, "corrupt entry at offset %d", pos)
	}
	h, err := l.readHeaderAt(pos)
	if err != nil {
		return 0, err
	}
	end := pos + headerSize + int64(h.payloadSize)
	if end > info.Size() {
		return 0, chainerr.New(chainerr.Internal, "corrupt entry at offset %d", pos)
	}
	return end, nil
}

// numFromBlockID extracts the block height stamped into an id's first
// four bytes
func numFromBlockID(id xcrypto.Id) uint32 {
	return binary.BigEndian.Uint32(id[0:4])
}

// Append writes one frame for blockID/payload, enforcing that blocks
// are appended in strict sequence.
func (l *Log) Append(blockID xcrypto.Id, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	block := numFromBlockID(blockID)
	if l.lastBlock != 0 && block != l.lastBlock+1 {
		return chainerr.New(chainerr.Internal, "missed a block appending to %s log: have %d, got %d", l.name, l.lastBlock, block)
	}

	info, err := l.logFile.Stat()
	if err != nil {
		return chainerr.Wrap(chainerr.Internal, err, "stat %s", l.logPath)
	}
	pos := info.Size()

	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(buf[0:8], l.magic)
	copy(buf[8:40], blockID[:])
	binary.LittleEndian.PutUint64(buf[40:48], uint64(len(payload)))
	if _, err := l.logFile.WriteAt(buf, pos); err != nil {
		return chainerr.Wrap(chainerr.Internal, err, "write header")
	}
	if _, err := l.logFile.WriteAt(payload, pos+headerSize); err != nil {
		return chainerr.Wrap(chainerr.Internal, err, "write payload")
	}

	idxBuf := make([]byte, indexRecordSize)
	binary.LittleEndian.PutUint32(idxBuf[0:4], block)
	binary.LittleEndian.PutUint64(idxBuf[4:12], uint64(pos))
	idxInfo, err := l.idxFile.Stat()
	if err != nil {
		return chainerr.Wrap(chainerr.Internal, err, "stat %s", l.idxPath)
	}
	if _, err := l.idxFile.WriteAt(idxBuf, idxInfo.Size()); err != nil {
		return chainerr.Wrap(chainerr.Internal, err, "write index")
	}

	l.offsets[block] = pos
	if l.firstBlock == 0 {
		l.firstBlock = block
	}
	l.lastBlock = block
	return nil
}

// ReadBlock returns the payload recorded for block.
func (l *Log) ReadBlock(block uint32) ([]byte, error) {
	l.mu.Lock()
	pos, ok := l.offsets[block]
	l.mu.Unlock()
	if !ok {
		return nil, chainerr.New(chainerr.NotFound, "block %d not found in %s log", block, l.name)
	}
	return l.readPayloadAt(pos, block)
}

func (l *Log) readPayloadAt(pos int64, wantBlock uint32) ([]byte, error) {
	h, err := l.readHeaderAt(pos)
	if err != nil {
		return nil, err
	}
	if numFromBlockID(h.blockID) != wantBlock {
		return nil, chainerr.New(chainerr.Internal, "corrupt entry at offset %d", pos)
	}
	buf := make([]byte, h.payloadSize)
	if _, err := l.logFile.ReadAt(buf, pos+headerSize); err != nil {
		return nil, chainerr.Wrap(chainerr.Internal, err, "read payload at %d", pos)
	}
	return buf, nil
}

// ReadRange streams every block in [start, end] (inclusive) to cb in
// ascending order.
func (l *Log) ReadRange(start, end uint32, cb func(block uint32, payload []byte) error) error {
	l.mu.Lock()
	blocks := make([]uint32, 0, len(l.offsets))
	for b := range l.offsets {
		if b >= start && b <= end {
			blocks = append(blocks, b)
		}
	}
	l.mu.Unlock()

	sortUint32s(blocks)
	for _, b := range blocks {
		l.mu.Lock()
		pos := l.offsets[b]
		l.mu.Unlock()
		payload, err := l.readPayloadAt(pos, b)
		if err != nil {
			return err
		}
		if err := cb(b, payload); err != nil {
			return err
		}
	}
	return nil
}

func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Range reports the [first, last] block numbers held, or ok=false if
// the log is empty.
func (l *Log) Range() (first, last uint32, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastBlock == 0 {
		return 0, 0, false
	}
	return l.firstBlock, l.lastBlock, true
}

// GetBlockID returns the block id stored for block, validating the
// frame isn't torn.
func (l *Log) GetBlockID(block uint32) (xcrypto.Id, error) {
	l.mu.Lock()
	pos, ok := l.offsets[block]
	l.mu.Unlock()
	if !ok {
		return xcrypto.Id{}, chainerr.New(chainerr.NotFound, "block %d not found in %s log", block, l.name)
	}
	h, err := l.readHeaderAt(pos)
	if err != nil {
		return xcrypto.Id{}, err
	}
	if numFromBlockID(h.blockID) != block {
		return xcrypto.Id{}, chainerr.New(chainerr.Internal, "corrupt entry at offset %d", pos)
	}
	return h.blockID, nil
}

// Close releases the underlying file handles.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err1 := l.logFile.Close()
	err2 := l.idxFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
