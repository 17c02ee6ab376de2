package kafka

// Config holds the Kafka connection settings shared by producers.
type Config struct {
	// Enabled turns event publishing on. When false events stay in-process.
	Enabled bool `env:"EVENTS_ENABLED" envDefault:"false"`
	// Brokers is a comma separated list: localhost:19092 on the host, kafka:9092 inside docker.
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	// Topic receives every payment lifecycle event.
	Topic string `env:"KAFKA_TOPIC" envDefault:"payments.events"`
}

// DefaultConfig returns the local development settings.
func DefaultConfig() Config {
	return Config{
		Brokers: []string{"localhost:19092"},
		Topic:   "payments.events",
	}
}
