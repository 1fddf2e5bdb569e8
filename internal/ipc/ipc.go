package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/jarvis.sock"

const (
	CmdPause  = "pause"
	CmdResume = "resume"
	CmdStatus = "status"
)

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

type Handler func(ControlMessage) Reply

type Server struct {
	path string
	ln   net.Listener
}

// Listen starts accepting control messages on a unix socket. Each connection
// carries one message and gets one reply.
func Listen(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				log.Warn("Control socket accept failed", "err", err)
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return &Server{path: path, ln: ln}, nil
}

func (s *Server) Close() error {
	err := s.ln.Close()
	_ = os.Remove(s.path)
	return err
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}

	_ = json.NewEncoder(conn).Encode(handler(msg))
}

func SendCommand(path, cmd string) (Reply, error) {
	if path == "" {
		path = DefaultSocketPath
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return Reply{}, err
	}

	var r Reply
	if err := json.NewDecoder(conn).Decode(&r); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return r, nil
}
