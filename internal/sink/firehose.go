package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sr"

	"pulse/ingest/internal/model"
)

const produceTimeout = 5 * time.Second

// kafkaProducer is the slice of kgo.Client the firehose needs; tests swap in
// a fake.
type kafkaProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Flush(ctx context.Context) error
	Close()
}

// Firehose is the hard sink: one Avro-serialized message per record on the
// raw posts topic, key = record id, schema validated against the registry.
// Encode or produce failures surface to the caller.
type Firehose struct {
	producer kafkaProducer
	client   *kgo.Client // retained for health checks
	serde    *sr.Serde
	topic    string
	logger   *logrus.Logger
}

// FirehoseConfig configures the Kafka sink.
type FirehoseConfig struct {
	Brokers     []string
	RegistryURL string
	Topic       string
	SchemaText  string
	Schema      avro.Schema
	Logger      *logrus.Logger
}

// NewFirehose connects the producer and registers the record schema under
// the topic's value subject. First publish against a fresh registry
// auto-registers the schema.
func NewFirehose(ctx context.Context, cfg FirehoseConfig) (*Firehose, error) {
	rc, err := sr.NewClient(sr.URLs(cfg.RegistryURL))
	if err != nil {
		return nil, fmt.Errorf("create schema registry client: %w", err)
	}

	subject := cfg.Topic + "-value"
	ss, err := rc.CreateSchema(ctx, subject, sr.Schema{Schema: cfg.SchemaText, Type: sr.TypeAvro})
	if err != nil {
		return nil, fmt.Errorf("register schema for %s: %w", subject, err)
	}

	serde := &sr.Serde{}
	serde.Register(ss.ID, model.SubmissionRecord{}, sr.EncodeFn(func(v any) ([]byte, error) {
		return avro.Marshal(cfg.Schema, v)
	}))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID("trawler"),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Firehose{
		producer: client,
		client:   client,
		serde:    serde,
		topic:    cfg.Topic,
		logger:   cfg.Logger,
	}, nil
}

func (f *Firehose) Deliver(ctx context.Context, rec model.SubmissionRecord, opts Options) (Result, error) {
	value, err := f.serde.Encode(rec)
	if err != nil {
		return Result{}, fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	record := &kgo.Record{
		Topic:     f.topic,
		Key:       []byte(rec.ID),
		Value:     value,
		Timestamp: time.UnixMilli(rec.Timestamp),
		Headers:   []kgo.RecordHeader{{Key: "source", Value: []byte(rec.Source)}},
	}
	if opts.Subreddit != "" {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: "subreddit", Value: []byte(opts.Subreddit)})
	}

	produceCtx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()

	if err := f.producer.ProduceSync(produceCtx, record).FirstErr(); err != nil {
		return Result{}, fmt.Errorf("produce record %s: %w", rec.ID, err)
	}
	return Result{Outcome: Delivered}, nil
}

func (f *Firehose) Flush(ctx context.Context) error {
	return f.producer.Flush(ctx)
}

func (f *Firehose) Close() {
	f.producer.Close()
}

func (f *Firehose) Name() string {
	return "kafka:" + f.topic
}

// Client returns the underlying kgo.Client for health checks.
func (f *Firehose) Client() *kgo.Client {
	return f.client
}
