package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Kind tags an envelope crossing the link.
type Kind byte

const (
	KindPing    Kind = 0x01
	KindPong    Kind = 0x02
	KindPublish Kind = 0x10
	KindRequest Kind = 0x14
	KindReply   Kind = 0x15
	KindClose   Kind = 0x7f
)

// Envelope is one bus event on the wire.
type Envelope struct {
	Kind     Kind            `json:"-"`
	Topic    string          `json:"topic,omitempty"`
	ID       string          `json:"id,omitempty"`
	Retained bool            `json:"retained,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Link carries envelopes to and from a peer. Send is safe for concurrent use.
type Link interface {
	Send(Envelope) error
	Recv(ctx context.Context) (Envelope, error)
	Close() error
}

// Transport is a pluggable link dialler.
type Transport interface {
	Open(ctx context.Context) (Link, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu     sync.RWMutex
	registry  = map[string]transportFactory{}
	errNoDial = errors.New("no uart dialler on this platform")
)

// RegisterTransport adds a transport type, replacing any built-in of the same name.
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "uart":
		return newUARTTransport(cfg)
	case "mqtt":
		return newMQTTTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// UARTDial opens the configured serial port. Platform files install a
// default; tests replace it.
var UARTDial func(ctx context.Context, u UARTConfig) (io.ReadWriteCloser, error) = dialUART

type uartTransport struct {
	cfg UARTConfig
}

func newUARTTransport(cfg TransportConfig) (Transport, error) {
	if cfg.UART == nil {
		return nil, errors.New("uart transport requires uart config")
	}
	return &uartTransport{cfg: *cfg.UART}, nil
}

func (u *uartTransport) Open(ctx context.Context) (Link, error) {
	if UARTDial == nil {
		return nil, errNoDial
	}
	rwc, err := UARTDial(ctx, u.cfg)
	if err != nil {
		return nil, err
	}
	return newFramedLink(rwc), nil
}

func (u *uartTransport) String() string { return "uart" }

// -----------------------------------------------------------------------------
// Framing: type byte, 16-bit big-endian length, JSON envelope body
// -----------------------------------------------------------------------------

const maxFrame = 0xFFFF

// Frame is one length-prefixed unit on a byte stream.
type Frame struct {
	Type    Kind
	Payload []byte
}

type framedReader struct{ r io.Reader }
type framedWriter struct{ w io.Writer }

func newFramedReader(r io.Reader) *framedReader { return &framedReader{r: r} }
func newFramedWriter(w io.Writer) *framedWriter { return &framedWriter{w: w} }

func (fr *framedReader) ReadFrame() (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n := int(hdr[1])<<8 | int(hdr[2])
	var buf []byte
	if n > 0 {
		buf = make([]byte, n)
		if _, err := io.ReadFull(fr.r, buf); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Type: Kind(hdr[0]), Payload: buf}, nil
}

// WriteFrame emits header and body in one write so concurrent frames never interleave.
func (fw *framedWriter) WriteFrame(f Frame) error {
	if len(f.Payload) > maxFrame {
		return fmt.Errorf("frame too large: %d", len(f.Payload))
	}
	buf := make([]byte, 0, 3+len(f.Payload))
	buf = append(buf, byte(f.Type), byte(len(f.Payload)>>8), byte(len(f.Payload)))
	buf = append(buf, f.Payload...)
	_, err := fw.w.Write(buf)
	return err
}

type inbound struct {
	env Envelope
	err error
}

// framedLink runs envelopes over a byte stream. A reader goroutine answers
// pings and queues everything else for Recv.
type framedLink struct {
	rwc  io.ReadWriteCloser
	wr   *framedWriter
	wmu  sync.Mutex
	in   chan inbound
	once sync.Once
	done chan struct{}
}

func newFramedLink(rwc io.ReadWriteCloser) *framedLink {
	l := &framedLink{
		rwc:  rwc,
		wr:   newFramedWriter(rwc),
		in:   make(chan inbound, 16),
		done: make(chan struct{}),
	}
	go l.readLoop(newFramedReader(rwc))
	return l
}

func (l *framedLink) readLoop(rd *framedReader) {
	for {
		f, err := rd.ReadFrame()
		if err != nil {
			l.push(inbound{err: err})
			return
		}
		switch f.Type {
		case KindPing:
			if err := l.write(Frame{Type: KindPong}); err != nil {
				l.push(inbound{err: err})
				return
			}
		case KindPong:
		case KindClose:
			l.push(inbound{err: io.EOF})
			return
		case KindPublish, KindRequest, KindReply:
			env := Envelope{Kind: f.Type}
			if err := json.Unmarshal(f.Payload, &env); err != nil {
				continue
			}
			env.Kind = f.Type
			if !l.push(inbound{env: env}) {
				return
			}
		}
	}
}

func (l *framedLink) push(in inbound) bool {
	select {
	case l.in <- in:
		return true
	case <-l.done:
		return false
	}
}

func (l *framedLink) write(f Frame) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	return l.wr.WriteFrame(f)
}

func (l *framedLink) Send(env Envelope) error {
	f := Frame{Type: env.Kind}
	switch env.Kind {
	case KindPublish, KindRequest, KindReply:
		b, err := json.Marshal(env)
		if err != nil {
			return err
		}
		f.Payload = b
	}
	return l.write(f)
}

func (l *framedLink) Recv(ctx context.Context) (Envelope, error) {
	select {
	case in := <-l.in:
		return in.env, in.err
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-l.done:
		return Envelope{}, io.ErrClosedPipe
	}
}

func (l *framedLink) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.rwc.Close()
	})
	return err
}
