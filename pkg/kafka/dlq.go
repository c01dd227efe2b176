package kafka

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// DLQPayload wraps a provisioning task message that could not be processed.
// The original bytes ride along base64-encoded so an operator can inspect
// or replay the task after fixing whatever poisoned it.
type DLQPayload struct {
	Topic       string            `json:"topic"`
	Partition   int32             `json:"partition"`
	Offset      int64             `json:"offset"`
	Timestamp   time.Time         `json:"timestamp"`
	KeyBase64   string            `json:"key_base64,omitempty"`
	ValueBase64 string            `json:"value_base64"`
	Headers     map[string]string `json:"headers,omitempty"`
	Error       string            `json:"error"`
	Consumer    string            `json:"consumer"`
}

// EncodeDLQMessage serializes a failed message into a DLQ-safe envelope.
func EncodeDLQMessage(msg Message, err error, consumer string) ([]byte, error) {
	payload := DLQPayload{
		Topic:       msg.Topic,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		Timestamp:   msg.Timestamp,
		ValueBase64: base64.StdEncoding.EncodeToString(msg.Value),
		Headers:     msg.Headers,
		Consumer:    consumer,
	}

	if len(msg.Key) > 0 {
		payload.KeyBase64 = base64.StdEncoding.EncodeToString(msg.Key)
	}

	if err != nil {
		payload.Error = err.Error()
	}

	b, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal dlq payload: %w", marshalErr)
	}

	return b, nil
}

// DecodeDLQMessage parses a DLQ envelope back into its payload.
func DecodeDLQMessage(b []byte) (DLQPayload, error) {
	var payload DLQPayload
	if err := json.Unmarshal(b, &payload); err != nil {
		return DLQPayload{}, fmt.Errorf("unmarshal dlq payload: %w", err)
	}
	return payload, nil
}

// OriginalValue returns the dead-lettered message's original bytes.
func (p DLQPayload) OriginalValue() ([]byte, error) {
	v, err := base64.StdEncoding.DecodeString(p.ValueBase64)
	if err != nil {
		return nil, fmt.Errorf("decode dlq value: %w", err)
	}
	return v, nil
}

// OriginalTask decodes the dead-lettered bytes back into a provisioning
// task. It fails for tasks that were dead-lettered because they never were
// valid JSON in the first place.
func (p DLQPayload) OriginalTask() (Task, error) {
	v, err := p.OriginalValue()
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := json.Unmarshal(v, &task); err != nil {
		return Task{}, fmt.Errorf("decode dlq task: %w", err)
	}
	return task, nil
}
