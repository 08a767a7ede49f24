package bifurcate

import (
	"io"
	"sync"
)

// pipe is the bounded byte FIFO between the coordinator (single writer) and
// one consumer (single reader). Writes suspend once the backlog would exceed
// blockAfter and resume only after the reader drains it to resumeAfter;
// reads suspend while the backlog is empty and the write end is open.
//
// Bytes read are exactly the concatenation of bytes written, in order.
type pipe struct {
	mu       sync.Mutex
	canRead  sync.Cond // backlog non-empty, or any end closed/aborted
	canWrite sync.Cond // backlog drained to resumeAfter, or closed/aborted

	buf         []byte
	blockAfter  int
	resumeAfter int

	writeClosed bool
	writeErr    error // reason carried by closeWrite; nil means clean EOF
	readClosed  bool
	abortErr    error // cancellation; trumps buffered data on both ends
}

func newPipe(blockAfter, resumeAfter int) *pipe {
	p := &pipe{
		blockAfter:  blockAfter,
		resumeAfter: resumeAfter,
	}
	p.canRead.L = &p.mu
	p.canWrite.L = &p.mu
	return p
}

// write appends view to the backlog, suspending whenever the backlog is at
// the block watermark. It reports readerClosed=true as soon as the read end
// is found closed; the producer must stop writing then. The returned error
// is non-nil only after abort, or io.ErrClosedPipe once the write end has
// been sealed.
//
// Views larger than blockAfter are admitted in watermark-sized pieces, so
// the backlog never exceeds blockAfter.
func (p *pipe) write(view []byte) (readerClosed bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		switch {
		case p.abortErr != nil:
			return false, p.abortErr
		case p.readClosed:
			return true, nil
		case p.writeClosed:
			return false, io.ErrClosedPipe
		}

		if len(view) == 0 {
			return false, nil
		}

		space := p.blockAfter - len(p.buf)
		if space <= 0 {
			p.canWrite.Wait()
			continue
		}

		n := len(view)
		if n > space {
			n = space
		}
		p.buf = append(p.buf, view[:n]...)
		view = view[n:]
		p.canRead.Signal()
	}
}

// read copies the next sequential bytes into dst. Abort and close-with-error
// are surfaced ahead of buffered data; a clean close drains first.
func (p *pipe) read(dst []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.abortErr != nil {
			return 0, p.abortErr
		}
		if p.readClosed {
			return 0, io.ErrClosedPipe
		}
		if p.writeClosed && p.writeErr != nil {
			return 0, p.writeErr
		}

		if len(p.buf) > 0 {
			n := copy(dst, p.buf)
			rest := copy(p.buf, p.buf[n:])
			p.buf = p.buf[:rest]
			if len(p.buf) <= p.resumeAfter {
				p.canWrite.Signal()
			}
			return n, nil
		}

		if p.writeClosed {
			return 0, io.EOF
		}
		p.canRead.Wait()
	}
}

// closeWrite seals the write end. A non-nil reason is surfaced to the reader
// on its next read, ahead of any buffered bytes; a nil reason lets the reader
// drain to io.EOF. First close wins.
func (p *pipe) closeWrite(reason error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeClosed {
		return
	}
	p.writeClosed = true
	p.writeErr = reason
	p.canRead.Broadcast()
	p.canWrite.Broadcast()
}

// closeRead releases the consumer end, waking a suspended writer. Idempotent.
func (p *pipe) closeRead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readClosed {
		return
	}
	p.readClosed = true
	p.canRead.Broadcast()
	p.canWrite.Broadcast()
}

// abort wakes both ends with reason, regardless of buffered data. Used for
// cancellation; first abort wins.
func (p *pipe) abort(reason error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.abortErr != nil {
		return
	}
	p.abortErr = reason
	p.canRead.Broadcast()
	p.canWrite.Broadcast()
}

// backlog reports the in-flight byte count. Test hook.
func (p *pipe) backlog() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}
