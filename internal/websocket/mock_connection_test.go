package websocket

import (
	"errors"
	"sync"
	"time"
)

// mockConnection feeds ReadMessage from a channel and records every write,
// including writes racing a Close from the read pump
type mockConnection struct {
	mu sync.Mutex

	incoming chan []byte
	written  []mockFrame
	closed   bool

	readLimit    int64
	readDeadline time.Time
	pongHandler  func(string) error
}

type mockFrame struct {
	Type int
	Data []byte
}

func newMockConnection() *mockConnection {
	return &mockConnection{incoming: make(chan []byte, 16)}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.written = append(m.written, mockFrame{Type: messageType, Data: append([]byte(nil), data...)})
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	data, ok := <-m.incoming
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, data, nil
}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConnection) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDeadline = t
	return nil
}

func (m *mockConnection) SetWriteDeadline(time.Time) error { return nil }

func (m *mockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readLimit = limit
}

func (m *mockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pongHandler = h
}

func (m *mockConnection) RemoteAddr() string { return "127.0.0.1:50000" }

// send queues a client frame
func (m *mockConnection) send(frame string) {
	m.incoming <- []byte(frame)
}

// hangUp makes the next ReadMessage fail
func (m *mockConnection) hangUp() {
	close(m.incoming)
}

func (m *mockConnection) frames() []mockFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockFrame(nil), m.written...)
}
