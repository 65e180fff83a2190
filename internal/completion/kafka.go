package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const StatusCompleted = "COMPLETED"

// TaskEvent - событие завершения задачи в Kafka
type TaskEvent struct {
	TaskID    int64     `json:"taskId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// KafkaPublisher публикует события завершения задач.
// Writer асинхронный, ошибки доставки только логируются
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *log.Logger
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string, logger *log.Logger) *KafkaPublisher {
	if logger == nil {
		logger = log.Default()
	}
	p := &KafkaPublisher{logger: logger, now: time.Now}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion:   p.delivered,
	}
	return p
}

func (p *KafkaPublisher) Submit(ctx context.Context, taskID int64) error {
	msg, err := encodeEvent(TaskEvent{TaskID: taskID, Status: StatusCompleted, Timestamp: p.now()})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) delivered(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		p.logger.Printf("task event delivery failed key=%s: %v", m.Key, err)
	}
}

func encodeEvent(event TaskEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.TaskID, 10)),
		Value: value,
		Time:  event.Timestamp,
	}, nil
}

// KafkaConsumer читает события завершения и запускает проверку задачи
type KafkaConsumer struct {
	reader  *kafka.Reader
	checker Checker
	timeout time.Duration
	logger  *log.Logger
	topic   string
	groupID string
}

func NewKafkaConsumer(brokers []string, topic, groupID string, checker Checker, timeout time.Duration, logger *log.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newKafkaConsumer(reader, checker, timeout, logger, topic, groupID)
}

func newKafkaConsumer(reader *kafka.Reader, checker Checker, timeout time.Duration, logger *log.Logger, topic, groupID string) *KafkaConsumer {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &KafkaConsumer{
		reader:  reader,
		checker: checker,
		timeout: timeout,
		logger:  logger,
		topic:   topic,
		groupID: groupID,
	}
}

// Start читает сообщения в цикле до отмены контекста
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Printf("kafka consumer started (topic=%s, group=%s)", c.topic, c.groupID)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Println("kafka consumer stopped")
				return nil
			}
			c.logger.Printf("read message error: %v", err)
			continue
		}

		if err := c.handleMessage(ctx, msg); err != nil {
			c.logger.Printf("handle task event error offset=%d: %v", msg.Offset, err)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event TaskEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("decode task event: %w", err)
	}
	if !strings.EqualFold(event.Status, StatusCompleted) {
		return nil
	}
	if event.TaskID <= 0 {
		return fmt.Errorf("invalid task id %d", event.TaskID)
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	a, err := c.checker.CheckCompletedTask(checkCtx, event.TaskID)
	if err != nil {
		return err
	}
	if a != nil {
		c.logger.Printf("anomaly detected on completion task=%d deviation=%.2f", event.TaskID, a.Deviation)
	}
	return nil
}
