package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

func dlqMessageValue(t *testing.T, eventType string) []byte {
	t.Helper()
	envelope := map[string]any{
		"id":             "outbox-1",
		"aggregate_type": "order",
		"aggregate_id":   "order-1",
		"event_type":     eventType,
		"payload": map[string]any{
			"outbox_id":      "outbox-1",
			"aggregate_type": "order",
			"aggregate_id":   "order-1",
			"event_type":     eventType,
			"payload":        map[string]any{"order_id": "order-1"},
			"publish_error":  "kafka timeout",
		},
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope failed: %v", err)
	}
	return raw
}

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 {
		t.Fatalf("unexpected brokers count: got=%d want=2", len(brokers))
	}
	if brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func TestExtractReplayMessage_RoutesByEventType(t *testing.T) {
	orderMsg := &sarama.ConsumerMessage{Value: dlqMessageValue(t, "order.canceled")}
	got, ok, err := extractReplayMessage(orderMsg, "commerce.order.events", "commerce.stock.events")
	if err != nil || !ok {
		t.Fatalf("extractReplayMessage: ok=%v err=%v", ok, err)
	}
	if got.topic != "commerce.order.events" {
		t.Fatalf("unexpected topic for order event: %s", got.topic)
	}
	if got.key != "order-1" {
		t.Fatalf("unexpected key: %s", got.key)
	}

	var replay replayEnvelope
	if err := json.Unmarshal(got.value, &replay); err != nil {
		t.Fatalf("replay value must be a valid envelope: %v", err)
	}
	if replay.EventType != "order.canceled" || replay.ID != "outbox-1" {
		t.Fatalf("unexpected replay envelope: %+v", replay)
	}

	stockMsg := &sarama.ConsumerMessage{Value: dlqMessageValue(t, "stock.released")}
	got, ok, err = extractReplayMessage(stockMsg, "commerce.order.events", "commerce.stock.events")
	if err != nil || !ok {
		t.Fatalf("extractReplayMessage: ok=%v err=%v", ok, err)
	}
	if got.topic != "commerce.stock.events" {
		t.Fatalf("unexpected topic for stock event: %s", got.topic)
	}
}

func TestExtractReplayMessage_Unsupported(t *testing.T) {
	// Не-JSON и сообщения без event_type пропускаются молча
	for _, value := range [][]byte{[]byte("not json"), []byte(`{"foo":"bar"}`)} {
		_, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: value}, "o", "s")
		if ok || err != nil {
			t.Fatalf("value %q: ok=%v err=%v, want silent skip", value, ok, err)
		}
	}

	// Конверт без исходного payload — ошибка формата
	broken := []byte(`{"id":"x","event_type":"order.created","payload":{"event_type":"order.created"}}`)
	_, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: broken}, "o", "s")
	if ok || err == nil {
		t.Fatalf("expected format error, got ok=%v err=%v", ok, err)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "x", "y"); got != "x" {
		t.Fatalf("unexpected first non-empty value: %q", got)
	}
	if got := firstNonEmpty("", " "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()
	t.Setenv("COMMERCE_KAFKA_BROKERS", "")

	oldCommandLine := flag.CommandLine
	oldArgs := os.Args
	flag.CommandLine = flag.NewFlagSet("dlq-reprocess-test", flag.ContinueOnError)
	os.Args = append([]string{"dlq-reprocess"}, args...)
	defer func() {
		flag.CommandLine = oldCommandLine
		os.Args = oldArgs
	}()

	fn()
}

func TestReadConfig_FromFlags(t *testing.T) {
	withFlagArgs(t, []string{
		"-brokers=broker-1:9092,broker-2:9092",
		"-source-topic=commerce.dlq",
		"-limit=10",
		"-execute=true",
		"-idle-timeout=3s",
	}, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if len(cfg.brokers) != 2 {
			t.Fatalf("unexpected brokers count: %d", len(cfg.brokers))
		}
		if cfg.limit != 10 {
			t.Fatalf("unexpected limit: %d", cfg.limit)
		}
		if !cfg.execute {
			t.Fatal("expected execute=true")
		}
		if cfg.idleTimeout.Seconds() != 3 {
			t.Fatalf("unexpected idle-timeout: %s", cfg.idleTimeout)
		}
	})
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"-brokers="}, "kafka brokers are required"},
		{[]string{"-brokers=broker:9092", "-source-topic="}, "source-topic is required"},
		{[]string{"-brokers=broker:9092", "-limit=0"}, "limit must be > 0"},
		{[]string{"-brokers=broker:9092", "-idle-timeout=0s"}, "idle-timeout must be > 0"},
	}
	for _, tc := range cases {
		withFlagArgs(t, tc.args, func() {
			_, err := readConfig()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("args %v: expected %q error, got: %v", tc.args, tc.want, err)
			}
		})
	}
}

type stubReplayProducer struct {
	calls   int
	sendErr error
	lastMsg *sarama.ProducerMessage
}

func (p *stubReplayProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	p.calls++
	p.lastMsg = msg
	return 0, int64(p.calls), p.sendErr
}

func (p *stubReplayProducer) Close() error { return nil }

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	offsetErr     map[int32]error
}

func (c *stubOffsetClient) GetOffset(_ string, partition int32, at int64) (int64, error) {
	if err := c.offsetErr[partition]; err != nil {
		return 0, err
	}
	r, ok := c.offsets[partition]
	if !ok {
		return 0, fmt.Errorf("no offsets for partition %d", partition)
	}
	if at == sarama.OffsetOldest {
		return r.oldest, nil
	}
	return r.newest, nil
}

func (c *stubOffsetClient) Partitions(string) ([]int32, error) {
	return c.partitions, c.partitionsErr
}

func (c *stubOffsetClient) Close() error { return nil }

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (pc *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return pc.messages }
func (pc *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError    { return pc.errors }
func (pc *stubPartitionConsumer) Close() error                            { return nil }

func closedPartitionConsumer(messages []*sarama.ConsumerMessage) partitionConsumer {
	pc := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(messages)),
		errors:   make(chan *sarama.ConsumerError),
	}
	for _, msg := range messages {
		pc.messages <- msg
	}
	return pc
}

type stubPartitionConsumerSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, _ int64) (partitionConsumer, error) {
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	pc, ok := s.consumers[partition]
	if !ok {
		return nil, fmt.Errorf("no consumer for partition %d", partition)
	}
	return pc, nil
}

func (s *stubPartitionConsumerSource) Close() error { return nil }

func testConfig() config {
	return config{
		sourceTopic: "commerce.dlq",
		orderTopic:  "commerce.order.events",
		stockTopic:  "commerce.stock.events",
		limit:       10,
		idleTimeout: 20 * time.Millisecond,
	}
}

func TestProcessPartition_DryRun(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{
				Partition: 0,
				Offset:    0,
				Value:     dlqMessageValue(t, "order.created"),
			}}),
		},
	}

	stats, err := processPartition(context.Background(), consumer, client, nil, testConfig(), 0, 10)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 1 || stats.replayed != 1 || stats.skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestProcessPartition_Execute(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{
				Partition: 0,
				Offset:    0,
				Value:     dlqMessageValue(t, "stock.released"),
			}}),
		},
	}
	producer := &stubReplayProducer{}
	cfg := testConfig()
	cfg.execute = true

	stats, err := processPartition(context.Background(), consumer, client, producer, cfg, 0, 10)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.replayed != 1 {
		t.Fatalf("expected replayed=1, got %+v", stats)
	}
	if producer.calls != 1 {
		t.Fatalf("expected one producer call, got %d", producer.calls)
	}
	if producer.lastMsg == nil || producer.lastMsg.Topic != "commerce.stock.events" {
		t.Fatalf("stock event must be replayed into the stock topic: %+v", producer.lastMsg)
	}
}

func TestProcessPartition_SkipsUnsupported(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{
				Partition: 0,
				Offset:    0,
				Value:     []byte(`{"foo":"bar"}`),
			}}),
		},
	}

	stats, err := processPartition(context.Background(), consumer, client, nil, testConfig(), 0, 10)
	if err != nil {
		t.Fatalf("processPartition failed: %v", err)
	}
	if stats.processed != 1 || stats.skipped != 1 || stats.replayed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestProcessPartition_ProducerFailureStopsReplay(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{
				Partition: 0,
				Offset:    0,
				Value:     dlqMessageValue(t, "order.created"),
			}}),
		},
	}
	producer := &stubReplayProducer{sendErr: errors.New("send fail")}
	cfg := testConfig()
	cfg.execute = true

	if _, err := processPartition(context.Background(), consumer, client, producer, cfg, 0, 10); err == nil {
		t.Fatal("expected producer send error")
	}
}

func TestProcessPartition_IdleTimeout(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	idle := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	consumer := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{0: idle}}

	cfg := testConfig()
	cfg.idleTimeout = 10 * time.Millisecond
	stats, err := processPartition(context.Background(), consumer, client, nil, cfg, 0, 10)
	if err != nil {
		t.Fatalf("unexpected idle-timeout error: %v", err)
	}
	if stats.processed != 0 {
		t.Fatalf("expected processed=0, got %+v", stats)
	}
	close(idle.messages)
	close(idle.errors)
}

func TestRunReplay(t *testing.T) {
	cfg := testConfig()

	if err := runReplay(context.Background(), cfg, nil, nil, nil); err == nil {
		t.Fatal("expected missing deps error")
	}

	cfg.execute = true
	client := &stubOffsetClient{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	if err := runReplay(context.Background(), cfg, client, &stubPartitionConsumerSource{}, nil); err == nil {
		t.Fatal("expected producer required error")
	}

	cfg.execute = false
	consumer := &stubPartitionConsumerSource{
		consumers: map[int32]partitionConsumer{
			0: closedPartitionConsumer([]*sarama.ConsumerMessage{{
				Partition: 0,
				Offset:    0,
				Value:     dlqMessageValue(t, "order.created"),
			}}),
		},
	}
	if err := runReplay(context.Background(), cfg, client, consumer, nil); err != nil {
		t.Fatalf("dry-run replay failed: %v", err)
	}

	empty := &stubOffsetClient{partitions: nil}
	if err := runReplay(context.Background(), cfg, empty, consumer, nil); err != nil {
		t.Fatalf("empty topic replay failed: %v", err)
	}
}
