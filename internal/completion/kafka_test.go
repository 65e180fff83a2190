package completion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestEncodeEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg, err := encodeEvent(TaskEvent{TaskID: 42, Status: StatusCompleted, Timestamp: ts})
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}
	if string(msg.Key) != "42" {
		t.Fatalf("key = %q", msg.Key)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["taskId"] != float64(42) || raw["status"] != "COMPLETED" {
		t.Fatalf("payload = %v", raw)
	}
	if _, ok := raw["timestamp"]; !ok {
		t.Fatal("timestamp missing")
	}
}

func TestHandleMessage(t *testing.T) {
	checker := &recordingChecker{}
	c := newKafkaConsumer(nil, checker, time.Second, quietLogger(), "task.completed", "test")
	ctx := context.Background()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"completed", `{"taskId":4,"status":"COMPLETED","timestamp":"2026-03-01T10:00:00Z"}`, false},
		{"other status ignored", `{"taskId":5,"status":"NEEDS_HELP"}`, false},
		{"bad json", `{"taskId":`, true},
		{"bad id", `{"taskId":0,"status":"COMPLETED"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.handleMessage(ctx, kafka.Message{Value: []byte(tt.value)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if got := checker.ids(); len(got) != 1 || got[0] != 4 {
		t.Fatalf("checked = %v, want [4]", got)
	}
}

func TestHandleMessageCheckError(t *testing.T) {
	boom := errors.New("boom")
	c := newKafkaConsumer(nil, &recordingChecker{err: boom}, time.Second, quietLogger(), "t", "g")
	err := c.handleMessage(context.Background(), kafka.Message{Value: []byte(`{"taskId":1,"status":"COMPLETED"}`)})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
