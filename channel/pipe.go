package channel

import (
	"context"
	"errors"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

const defaultPipeCapacity = 256

var pipeSerial atomix.Uint32

type pipeConfig struct {
	capacity int
}

// PipeOption configures NewPipe.
type PipeOption func(*pipeConfig)

// WithPipeCapacity sets the number of frames each direction buffers before Post waits.
func WithPipeCapacity(n int) PipeOption {
	return func(c *pipeConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// Pipe is one end of an in-memory channel. Each direction is a bounded lock-free SPSC
// queue; Post is the producer and the Listen pump is the consumer.
type Pipe struct {
	side   Side
	serial uint32
	send   *lfq.SPSC[[]byte]
	recv   *lfq.SPSC[[]byte]
	closed *atomix.Uint32

	// lfq.SPSC allows a single producer, concurrent Posts take turns.
	sending sync.Mutex
	listen  sync.Once
	done    chan struct{}
}

type pipePair struct {
	host     Pipe
	client   Pipe
	closed   atomix.Uint32
	toClient lfq.SPSC[[]byte]
	toHost   lfq.SPSC[[]byte]
}

// NewPipe creates a connected host/client pair. Closing either end closes both.
func NewPipe(opts ...PipeOption) (host, client *Pipe) {
	cfg := pipeConfig{capacity: defaultPipeCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	serial := pipeSerial.Add(1)
	pair := &pipePair{}
	pair.toClient.Init(cfg.capacity)
	pair.toHost.Init(cfg.capacity)

	pair.host = Pipe{
		side:   Host,
		serial: serial,
		send:   &pair.toClient,
		recv:   &pair.toHost,
		closed: &pair.closed,
		done:   make(chan struct{}),
	}
	pair.client = Pipe{
		side:   Client,
		serial: serial,
		send:   &pair.toHost,
		recv:   &pair.toClient,
		closed: &pair.closed,
		done:   make(chan struct{}),
	}
	return &pair.host, &pair.client
}

func (p *Pipe) Side() Side { return p.side }

// Serial identifies the pair this end belongs to.
func (p *Pipe) Serial() uint32 { return p.serial }

// Post enqueues frame for the other end, waiting with adaptive backoff while the queue is full.
func (p *Pipe) Post(ctx context.Context, frame []byte) error {
	p.sending.Lock()
	defer p.sending.Unlock()

	var bo iox.Backoff
	for {
		if p.closed.Load() != 0 {
			return ErrClosed
		}
		if err := p.send.Enqueue(&frame); err == nil {
			return nil
		} else if !errors.Is(err, iox.ErrWouldBlock) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		bo.Wait()
	}
}

// Listen starts the pump that hands inbound frames to fn. Frames posted before
// Listen stay queued until then.
func (p *Pipe) Listen(fn func(frame []byte)) {
	p.listen.Do(func() {
		go p.pump(fn)
	})
}

func (p *Pipe) pump(fn func(frame []byte)) {
	defer close(p.done)
	var bo iox.Backoff
	for {
		frame, err := p.recv.Dequeue()
		if err == nil {
			fn(frame)
			bo.Reset()
			continue
		}
		if p.closed.Load() != 0 {
			return
		}
		bo.Wait()
	}
}

// Done is closed when the pump has stopped. It never closes if Listen was not called.
func (p *Pipe) Done() <-chan struct{} { return p.done }

func (p *Pipe) Close() error {
	p.closed.Add(1)
	return nil
}
