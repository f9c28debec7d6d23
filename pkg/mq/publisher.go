package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"smart-campus/backend/config"
)

// Publisher RabbitMQ 领域事件发布器
// 事件发布到 topic 类型的 exchange，routing key 即事件名（如 timetable.applied）
type Publisher struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher 建立连接并声明 exchange
func NewPublisher(cfg *config.MQConfig, logger *zap.Logger) (*Publisher, error) {
	p := &Publisher{url: cfg.URL, exchange: cfg.Exchange, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	logger.Info("RabbitMQ 连接成功", zap.String("exchange", cfg.Exchange))
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("RabbitMQ 连接失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("RabbitMQ 打开通道失败: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("RabbitMQ 声明 exchange 失败: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish 以持久化消息发布事件；连接已断开时重连一次
func (p *Publisher) Publish(ctx context.Context, event string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         event,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.logger.Warn("RabbitMQ 连接已断开，尝试重连")
		if err := p.connect(); err != nil {
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, event, false, false, msg); err != nil {
		return fmt.Errorf("发布事件 %s 失败: %w", event, err)
	}
	return nil
}

// Close 关闭通道与连接
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
