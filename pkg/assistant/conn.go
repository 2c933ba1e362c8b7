package assistant

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// Conn is the minimal surface of a live bidirectional channel. The
// production implementation is a gorilla websocket connection; tests
// inject a fake that fires synthetic events.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn to the backend.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

type websocketDialer struct{}

func (websocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
