package pointer

import (
	"bytes"
	"errors"
	"strings"
	"sync"
)

// testPort is an in-memory Port. Reads block until data arrives or the port
// is closed.
type testPort struct {
	mu       sync.Mutex
	cond     *sync.Cond
	read     bytes.Buffer
	written  bytes.Buffer
	writeErr error
	short    bool
	closed   bool
}

func newTestPort() *testPort {
	p := &testPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *testPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.read.Len() == 0 {
		p.cond.Wait()
	}
	if p.read.Len() > 0 {
		return p.read.Read(b)
	}
	return 0, errors.New("serial port closed")
}

func (p *testPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.writeErr != nil {
		err := p.writeErr
		p.writeErr = nil
		return 0, err
	}
	if p.short {
		p.short = false
		return p.written.Write(b[:len(b)-1])
	}
	return p.written.Write(b)
}

func (p *testPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

func (p *testPort) feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.read.WriteString(s)
	p.cond.Signal()
}

// lines returns the commands written so far.
func (p *testPort) lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := strings.TrimSuffix(p.written.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
