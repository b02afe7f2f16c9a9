package handshake

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// LoopbackReceiver stands in for the opener window when the handshake
// is driven from a process instead of a browser tab. postMessage cannot
// cross into a process, so the callback page posts the credential to
// this short-lived localhost listener, which feeds the coordinator's
// message channel.
type LoopbackReceiver struct {
	ln  net.Listener
	srv *http.Server
	url string
}

func NewLoopbackReceiver() (*LoopbackReceiver, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	return &LoopbackReceiver{ln: ln, url: "http://" + ln.Addr().String()}, nil
}

// URL is the listener address the sign-in URL carries as the receiver
// parameter.
func (lr *LoopbackReceiver) URL() string { return lr.url }

// Serve accepts credential posts until Close. Each non-empty body is
// handed on as an AUTH_SUCCESS message attributed to origin, so the
// coordinator's trust check still applies.
func (lr *LoopbackReceiver) Serve(origin string, deliver func(Message)) {
	lr.srv = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, 8<<10))
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if token := strings.TrimSpace(string(body)); token != "" {
				deliver(Message{Origin: origin, Type: MessageTypeAuthSuccess, Token: token})
			}
			w.WriteHeader(http.StatusNoContent)
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := lr.srv.Serve(lr.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("credential receiver stopped", "error", err)
		}
	}()
}

func (lr *LoopbackReceiver) Close() error {
	if lr.srv != nil {
		return lr.srv.Close()
	}
	return lr.ln.Close()
}
