package bus

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

// Turn is one completed exchange as seen by bus listeners.
type Turn struct {
	ID        uuid.UUID `json:"id"`
	Utterance string    `json:"utterance"`
	Intent    string    `json:"intent"`
	Context   string    `json:"context,omitempty"`
	Reply     string    `json:"reply"`
	At        time.Time `json:"at"`
}

func NewTurn(utterance, intent, context, reply string, at time.Time) Turn {
	return Turn{
		ID:        uuid.New(),
		Utterance: utterance,
		Intent:    intent,
		Context:   context,
		Reply:     reply,
		At:        at,
	}
}

type Publisher struct {
	mu     sync.Mutex
	url    string
	conn   *ws.Conn
	dialer *ws.Dialer
}

func NewPublisher(ctx context.Context, url string) (*Publisher, error) {
	p := &Publisher{
		url:    url,
		dialer: &ws.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	if err := p.dial(ctx); err != nil {
		return nil, err
	}

	log.Info("Connected to bus", "url", url)
	return p, nil
}

func (p *Publisher) dial(ctx context.Context) error {
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return fmt.Errorf("dial bus: %w", err)
	}
	p.conn = conn
	return nil
}

// Publish writes the turn, redialing once if the connection dropped.
func (p *Publisher) Publish(ctx context.Context, t Turn) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		if err = p.write(ctx, payload); err == nil {
			return nil
		}
		log.Debug("Bus write failed, reconnecting", "err", err)
		p.conn.Close()
		p.conn = nil
	}

	if err := p.dial(ctx); err != nil {
		return err
	}
	return p.write(ctx, payload)
}

func (p *Publisher) write(ctx context.Context, payload []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = p.conn.SetWriteDeadline(dl)
	} else {
		_ = p.conn.SetWriteDeadline(time.Time{})
	}
	return p.conn.WriteMessage(ws.TextMessage, payload)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	_ = p.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	err := p.conn.Close()
	p.conn = nil
	return err
}
