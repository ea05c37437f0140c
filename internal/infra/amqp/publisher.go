// Package amqp forwards filed reports to the authorities' message exchange.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/metrics"
)

// Publisher keeps one connection and channel to a direct exchange and
// reconnects on the next publish once either is closed.
type Publisher struct {
	mu       sync.Mutex
	amqpURL  string
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(amqpURL, exchange string) (*Publisher, error) {
	p := &Publisher{amqpURL: amqpURL, exchange: exchange}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

// PublishWithRoutingKey sends message as persistent JSON.
func (p *Publisher) PublishWithRoutingKey(routingKey string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.channel == nil {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}

	err = p.channel.Publish(p.exchange, routingKey, false, false, publishing)
	if err != nil && isConnClosedErr(err) {
		p.closeLocked()
		if connErr := p.connectLocked(); connErr != nil {
			return fmt.Errorf("failed to publish message: %w (reconnect failed: %v)", err, connErr)
		}
		err = p.channel.Publish(p.exchange, routingKey, false, false, publishing)
	}
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.channel != nil {
		err = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		if connErr := p.conn.Close(); err == nil {
			err = connErr
		}
		p.conn = nil
	}
	return err
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.amqpURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = ch
	return nil
}

func (p *Publisher) closeLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func isConnClosedErr(err error) bool {
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}
	return strings.Contains(err.Error(), "channel/connection is not open")
}

type publisher interface {
	PublishWithRoutingKey(routingKey string, message any) error
}

// DispatchMessage is what an authority receives for each filed report.
type DispatchMessage struct {
	Namespace string        `json:"namespace"`
	Report    domain.Report `json:"report"`
}

// Dispatcher routes every filed report to a queue named after its authority.
// Publish failures are logged and counted; they never fail the submission.
type Dispatcher struct {
	pub publisher
	log *zap.Logger
}

func NewDispatcher(pub publisher, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{pub: pub, log: log}
}

func (d *Dispatcher) ReportFiled(ctx context.Context, namespace string, report domain.Report) {
	key := RoutingKey(report)
	if err := d.pub.PublishWithRoutingKey(key, DispatchMessage{Namespace: namespace, Report: report}); err != nil {
		metrics.DispatchErrorsTotal.Inc()
		d.log.Error("report dispatch failed", zap.String("report_id", report.ID), zap.String("routing_key", key), zap.Error(err))
		return
	}
	d.log.Debug("report dispatched", zap.String("report_id", report.ID), zap.String("routing_key", key))
}

// RoutingKey is the authority name lower-cased with spaces as dashes,
// e.g. "Margao MC" -> "margao-mc".
func RoutingKey(report domain.Report) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(report.Authority)), " ", "-")
}
