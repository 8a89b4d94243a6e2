package sink

import (
	"crypto/sha256"
	"crypto/sha512"
	"strings"
	"sync"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
	"github.com/xdg-go/scram"

	"zenlogd/internal/metrics"
	"zenlogd/pkg/record"
)

// KafkaSASLMechanism selects the authentication mechanism for a KafkaSink.
type KafkaSASLMechanism string

const (
	KafkaSASLNone       KafkaSASLMechanism = ""
	KafkaSASLPlain      KafkaSASLMechanism = "PLAIN"
	KafkaSASLScramSHA256 KafkaSASLMechanism = "SCRAM-SHA-256"
	KafkaSASLScramSHA512 KafkaSASLMechanism = "SCRAM-SHA-512"
)

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	Brokers      []string
	Topic        string
	SASLUser     string
	SASLPassword string
	SASLMechanism KafkaSASLMechanism
}

// kafkaSinkQueueDepth bounds the sink's own buffer between Handle and the
// producer, so a stalled broker connection drops records here instead of
// blocking the pipeline dispatch loop that calls Handle.
const kafkaSinkQueueDepth = 4096

// KafkaSink publishes each record as a JSON message to a Kafka topic via an
// async producer, keyed by the record's content hash for deterministic
// partitioning. Handle only enqueues; a dedicated goroutine feeds the
// producer, so a broker stall never blocks the caller.
type KafkaSink struct {
	topic    string
	producer sarama.AsyncProducer
	logger   *logrus.Logger
	queue    chan *record.Record
	feedWG   sync.WaitGroup
	drainWG  sync.WaitGroup
}

// NewKafkaSink dials cfg.Brokers and returns a sink publishing to cfg.Topic.
func NewKafkaSink(cfg KafkaSinkConfig, logger *logrus.Logger) (*KafkaSink, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner

	if cfg.SASLMechanism != KafkaSASLNone {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = cfg.SASLUser
		saramaCfg.Net.SASL.Password = cfg.SASLPassword

		switch cfg.SASLMechanism {
		case KafkaSASLPlain:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case KafkaSASLScramSHA256:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: sha256.New}
			}
		case KafkaSASLScramSHA512:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &xdgSCRAMClient{HashGeneratorFcn: sha512.New}
			}
		}
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, err
	}

	s := &KafkaSink{
		topic:    cfg.Topic,
		producer: producer,
		logger:   logger,
		queue:    make(chan *record.Record, kafkaSinkQueueDepth),
	}
	s.drainWG.Add(1)
	go s.drain()
	s.feedWG.Add(1)
	go s.feed()

	logger.WithFields(logrus.Fields{
		"sink":    "kafka",
		"brokers": strings.Join(cfg.Brokers, ","),
		"topic":   cfg.Topic,
	}).Info("kafka sink initialized")
	return s, nil
}

// Handle only enqueues; it never touches the producer directly, so a
// stalled broker connection can never block the pipeline dispatch loop
// that calls Handle for every sink in turn.
func (s *KafkaSink) Handle(rec *record.Record) {
	select {
	case s.queue <- rec:
	default:
		s.logger.WithField("sink", "kafka").Warn("dropping record: producer queue full")
		metrics.SinkHandledTotal.WithLabelValues("kafka", "dropped").Inc()
	}
}

// feed is the only goroutine that sends to the producer's Input channel. It
// exits once queue is closed and drained, guaranteeing every record already
// accepted by Handle reaches the producer before Close returns.
func (s *KafkaSink) feed() {
	defer s.feedWG.Done()

	for rec := range s.queue {
		b, err := rec.MarshalJSON()
		if err != nil {
			s.logger.WithError(err).WithField("sink", "kafka").Warn("dropping record: marshal failed")
			metrics.SinkHandledTotal.WithLabelValues("kafka", "error").Inc()
			continue
		}

		s.producer.Input() <- &sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(hashKey(rec)),
			Value: sarama.ByteEncoder(b),
		}
	}
}

func hashKey(rec *record.Record) string {
	return strings.ToLower(strings.TrimSpace(formatHash(rec.Hash())))
}

func formatHash(h uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[h&0xF]
		h >>= 4
	}
	return string(buf)
}

// drain consumes the async producer's Errors()/Successes() channels so they
// never block the producer, logging failures and recording metrics.
func (s *KafkaSink) drain() {
	defer s.drainWG.Done()

	for {
		select {
		case msg, ok := <-s.producer.Successes():
			if !ok {
				return
			}
			_ = msg
			metrics.KafkaMessagesProducedTotal.WithLabelValues(s.topic, "ok").Inc()
			metrics.SinkHandledTotal.WithLabelValues("kafka", "ok").Inc()
		case err, ok := <-s.producer.Errors():
			if !ok {
				return
			}
			s.logger.WithError(err).WithField("sink", "kafka").Warn("produce failed")
			metrics.KafkaProducerErrorsTotal.WithLabelValues(s.topic).Inc()
			metrics.SinkHandledTotal.WithLabelValues("kafka", "error").Inc()
		}
	}
}

func (s *KafkaSink) ReopenChannel() chan<- struct{} { return nil }

// Close closes the inbound queue and waits for feed to drain every
// already-accepted record into the producer before closing the producer
// itself — closing the producer first would race feed's sends on its
// Input channel. Producer.Close then drains in-flight messages and closes
// Successes/Errors, letting drain finish. Safe to call only once Handle is
// guaranteed not to be called again concurrently — the pipeline dispatch
// loop enforces that by closing sinks after it has already stopped.
func (s *KafkaSink) Close() error {
	close(s.queue)
	s.feedWG.Wait()
	err := s.producer.Close()
	s.drainWG.Wait()
	return err
}

// xdgSCRAMClient adapts xdg-go/scram to sarama.SCRAMClient.
type xdgSCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

func (x *xdgSCRAMClient) Begin(userName, password, authzID string) error {
	client, err := x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.Client = client
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

func (x *xdgSCRAMClient) Step(challenge string) (string, error) {
	return x.ClientConversation.Step(challenge)
}

func (x *xdgSCRAMClient) Done() bool {
	return x.ClientConversation.Done()
}
