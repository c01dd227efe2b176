package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDLQEnvelopeCarriesTheOriginalTask(t *testing.T) {
	task := Task{TaskID: "t1", PortfolioID: "p1", Attempt: 3}
	value, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	msg := Message{
		Key:       []byte("p1"),
		Value:     value,
		Topic:     TopicPortfolios,
		Partition: 2,
		Offset:    41,
		Timestamp: time.Now(),
	}

	b, err := EncodeDLQMessage(msg, errors.New("claim table gone"), "provisioner")
	if err != nil {
		t.Fatalf("EncodeDLQMessage failed: %v", err)
	}

	payload, err := DecodeDLQMessage(b)
	if err != nil {
		t.Fatalf("DecodeDLQMessage failed: %v", err)
	}
	if payload.Topic != TopicPortfolios || payload.Offset != 41 {
		t.Fatalf("envelope lost provenance: %+v", payload)
	}
	if payload.Error != "claim table gone" {
		t.Fatalf("envelope lost cause: %q", payload.Error)
	}

	got, err := payload.OriginalTask()
	if err != nil {
		t.Fatalf("OriginalTask failed: %v", err)
	}
	if got.TaskID != "t1" || got.PortfolioID != "p1" || got.Attempt != 3 {
		t.Fatalf("replayed task differs: %+v", got)
	}
}

func TestDLQOriginalTaskRejectsPoisonBytes(t *testing.T) {
	msg := Message{Value: []byte("not json"), Topic: TopicRoles}

	b, err := EncodeDLQMessage(msg, errors.New("unmarshal failed"), "provisioner")
	if err != nil {
		t.Fatalf("EncodeDLQMessage failed: %v", err)
	}

	payload, err := DecodeDLQMessage(b)
	if err != nil {
		t.Fatalf("DecodeDLQMessage failed: %v", err)
	}

	raw, err := payload.OriginalValue()
	if err != nil {
		t.Fatalf("OriginalValue failed: %v", err)
	}
	if string(raw) != "not json" {
		t.Fatalf("original bytes corrupted: %q", raw)
	}

	if _, err := payload.OriginalTask(); err == nil {
		t.Fatal("expected OriginalTask to fail for non-JSON bytes")
	}
}
