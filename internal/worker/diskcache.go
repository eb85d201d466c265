package worker

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const keyPrefix = "p:"

type diskOp struct {
	putKey string
	putEnt *entry
	clear  bool
}

// DiskCache persists probe results between runs so the dashboard can paint
// git columns before the first probe of a session completes. Writes are
// applied by a single writer goroutine.
type DiskCache struct {
	db     *leveldb.DB
	logger *log.Logger

	mu     sync.Mutex
	closed bool
	ops    chan diskOp
	done   chan struct{}
}

// OpenDiskCache opens (or creates) the leveldb database at path.
func OpenDiskCache(path string, logger *log.Logger) (*DiskCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	d := &DiskCache{
		db:     db,
		logger: logger,
		ops:    make(chan diskOp, 256),
		done:   make(chan struct{}),
	}
	go d.writerLoop()
	return d, nil
}

// Load returns every persisted entry keyed by path. Undecodable records are skipped.
func (d *DiskCache) Load() (map[string]entry, error) {
	it := d.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer it.Release()

	out := make(map[string]entry)
	for it.Next() {
		var e entry
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			d.logger.Debug("skipping corrupt snapshot record", "key", string(it.Key()), "err", err)
			continue
		}
		out[strings.TrimPrefix(string(it.Key()), keyPrefix)] = e
	}
	return out, it.Error()
}

// PutAsync queues a write of e under path. It never blocks; when the queue
// is full the write is dropped and the next probe of path rewrites it.
func (d *DiskCache) PutAsync(path string, e entry) {
	clone := e
	d.send(diskOp{putKey: path, putEnt: &clone})
}

// ClearAsync queues removal of every persisted entry.
func (d *DiskCache) ClearAsync() {
	d.send(diskOp{clear: true})
}

func (d *DiskCache) send(op diskOp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.ops <- op:
	default:
		d.logger.Warn("probe snapshot queue full, dropping write", "path", op.putKey, "clear", op.clear)
	}
}

// Close flushes queued writes and closes the database.
func (d *DiskCache) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ops)
	d.mu.Unlock()

	<-d.done
	if err := d.db.Close(); err != nil {
		d.logger.Warn("closing probe snapshot failed", "err", err)
	}
}

func (d *DiskCache) writerLoop() {
	defer close(d.done)
	for op := range d.ops {
		switch {
		case op.clear:
			d.applyClear()
		case op.putEnt != nil:
			d.applyPut(op.putKey, op.putEnt)
		}
	}
}

func (d *DiskCache) applyPut(path string, e *entry) {
	b, err := json.Marshal(e)
	if err != nil {
		d.logger.Warn("encoding snapshot record failed", "path", path, "err", err)
		return
	}
	if err := d.db.Put([]byte(keyPrefix+path), b, nil); err != nil {
		d.logger.Warn("writing snapshot record failed", "path", path, "err", err)
	}
}

func (d *DiskCache) applyClear() {
	it := d.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := d.db.Write(batch, nil); err != nil {
		d.logger.Warn("clearing snapshot failed", "err", err)
	}
}
