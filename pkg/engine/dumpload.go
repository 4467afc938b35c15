package engine

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cuemby/queryrt/pkg/apperr"
	"github.com/cuemby/queryrt/pkg/request"
	"github.com/cuemby/queryrt/pkg/storage"
)

// defaultDumpLoadChunk is the number of records a dump or load executor
// processes before checking cancellation, matching spec.md's "dump/load
// loaders check cancellation between file chunks" — not per row.
const defaultDumpLoadChunk = 500

// frame is the on-wire shape of one dumped record: a big-endian uint32
// length prefix for the key, the key bytes, a uint32 length prefix for
// the value, the value bytes. There is no reference wire format to
// follow here (content_get/put/scan in §6 operate on opaque bytes with
// no framing of their own), so this is the engine's own minimal
// self-describing encoding, not a reproduction of any example's format.
func writeFrame(w *bufio.Writer, key, value []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(key)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(value)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

func readFrame(r *bufio.Reader) (key, value []byte, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, nil, err
	}
	// Past the first length prefix, running out of input means the frame
	// was cut short, not that the stream ended cleanly.
	defer func() {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
	}()
	key = make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, nil, err
	}
	value = make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

// DumpExecutor is the load task's mirror image: a full-index scan
// written out in Chunk-sized batches, checking cancellation between
// chunks rather than between individual records.
type DumpExecutor struct {
	Index  string
	Writer io.Writer
	Chunk  int
}

// Run implements task.Executor.
func (d *DumpExecutor) Run(req *request.Context) error {
	chunk := d.Chunk
	if chunk <= 0 {
		chunk = defaultDumpLoadChunk
	}

	stx, err := req.DB.Begin(false)
	if err != nil {
		return err
	}
	defer stx.Rollback()

	cur, err := stx.Scan(d.Index, storage.Range{
		Lower: storage.Endpoint{Inclusivity: storage.Unbound},
		Upper: storage.Endpoint{Inclusivity: storage.Unbound},
	})
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(d.Writer)
	count := 0
	for cur.Next() {
		if err := writeFrame(bw, cur.Key(), cur.Value()); err != nil {
			return err
		}
		count++
		if count%chunk == 0 && req.Cancelled() && req.Config.CancellationEnabled {
			return apperr.New(apperr.RequestCanceled, "dump cancelled")
		}
	}
	return bw.Flush()
}

// LoadExecutor replays a DumpExecutor's framed output into Index under
// one storage transaction, checking cancellation between Chunk-sized
// batches of records rather than per record.
type LoadExecutor struct {
	Index  string
	Reader io.Reader
	Chunk  int
}

// Run implements task.Executor.
func (l *LoadExecutor) Run(req *request.Context) error {
	chunk := l.Chunk
	if chunk <= 0 {
		chunk = defaultDumpLoadChunk
	}

	stx, err := req.DB.Begin(true)
	if err != nil {
		return err
	}

	br := bufio.NewReader(l.Reader)
	count := 0
	for {
		key, value, err := readFrame(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = stx.Rollback()
			return err
		}
		if err := stx.Put(l.Index, key, value); err != nil {
			_ = stx.Rollback()
			return err
		}
		count++
		if count%chunk == 0 && req.Cancelled() && req.Config.CancellationEnabled {
			_ = stx.Rollback()
			return apperr.New(apperr.RequestCanceled, "load cancelled")
		}
	}
	return stx.Commit()
}
