package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const eventsExchange = "triggerstore.events"

// Bus ретранслирует события в AMQP-обмен triggerstore.events, с
// routing key равным типу события. Реализует Listener, поэтому
// регистрируется в Listeners как любой другой подписчик.
type Bus struct {
	url    string
	logger *slog.Logger

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel

	closed   bool
	closedCh chan struct{}
}

func NewBus(url string, logger *slog.Logger) (*Bus, error) {
	b := &Bus{url: url, logger: logger, closedCh: make(chan struct{})}
	if err := b.connect(); err != nil {
		return nil, err
	}
	go b.watch()
	return b, nil
}

func (b *Bus) connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(eventsExchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	b.conn, b.ch = conn, ch
	b.logger.Info("notify bus connected")
	return nil
}

// watch следит за обрывом соединения и переподключается: NotifyClose
// плюс экспоненциальная задержка.
func (b *Bus) watch() {
	for {
		b.mu.RLock()
		if b.closed {
			b.mu.RUnlock()
			return
		}
		conn := b.conn
		b.mu.RUnlock()

		if conn == nil {
			time.Sleep(time.Second)
			continue
		}

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-b.closedCh:
			return
		case err := <-notifyClose:
			if err != nil {
				b.logger.Warn("notify bus connection closed", "error", err)
			}
			b.reconnect()
		}
	}
}

func (b *Bus) reconnect() {
	delay := time.Second
	for {
		b.mu.RLock()
		if b.closed {
			b.mu.RUnlock()
			return
		}
		b.mu.RUnlock()

		time.Sleep(delay)
		if err := b.connect(); err != nil {
			b.logger.Warn("notify bus reconnect failed", "error", err)
			delay = min(delay*2, 30*time.Second)
			continue
		}
		b.logger.Info("notify bus reconnected")
		return
	}
}

// Notify реализует Listener: публикует e под routing key, равным его
// типу, так что внешние потребители могут биндиться избирательно.
func (b *Bus) Notify(e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		b.logger.Error("marshal event", "error", err)
		return
	}

	b.mu.RLock()
	ch := b.ch
	b.mu.RUnlock()
	if ch == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = ch.PublishWithContext(ctx, eventsExchange, string(e.Type), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   e.At,
		Body:        body,
	})
	if err != nil {
		b.logger.Error("publish event", "error", err, "type", e.Type)
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.closedCh)

	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
