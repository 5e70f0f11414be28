package kafka

import (
	"github.com/IBM/sarama"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
)

// Config конфигурация для Kafka
type Config struct {
	Brokers  []string
	Producer ProducerConfig
}

// ProducerConfig конфигурация для продюсера
type ProducerConfig struct {
	MaxMessageBytes  int
	Compression      sarama.CompressionCodec
	RequiredAcks     sarama.RequiredAcks
	FlushMaxMessages int
}

// NewConfig создает новую конфигурацию Kafka
func NewConfig(brokers []string) *Config {
	return &Config{
		Brokers: brokers,
		Producer: ProducerConfig{
			MaxMessageBytes:  1000000,
			Compression:      sarama.CompressionSnappy,
			RequiredAcks:     sarama.WaitForAll,
			FlushMaxMessages: 100,
		},
	}
}

// NewSaramaConfig создает новую конфигурацию Sarama
func NewSaramaConfig(cfg *Config, log *logger.Logger) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Version = sarama.V3_3_0_0

	saramaConfig.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	saramaConfig.Producer.Compression = cfg.Producer.Compression
	saramaConfig.Producer.RequiredAcks = cfg.Producer.RequiredAcks
	saramaConfig.Producer.Flush.MaxMessages = cfg.Producer.FlushMaxMessages
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	log.Debug("Sarama producer configured for brokers %v", cfg.Brokers)
	return saramaConfig
}
