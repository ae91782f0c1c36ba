package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier публикует InviteNotice в durable-очередь RabbitMQ.
type AMQPNotifier struct {
	mu    sync.Mutex // amqp.Channel не потокобезопасен для publish
	conn  *amqp.Connection
	chn   *amqp.Channel
	queue string
}

func NewAMQPNotifier(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := chn.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare %s: %w", queue, err)
	}
	return &AMQPNotifier{conn: conn, chn: chn, queue: queue}, nil
}

func (n *AMQPNotifier) InviteIssued(ctx context.Context, notice InviteNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.chn.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         "invite.issued",
			Body:         body,
		},
	)
}

func (n *AMQPNotifier) Close() error {
	if err := n.chn.Close(); err != nil {
		return err
	}
	return n.conn.Close()
}
