package config

// Brokers пустой - чтение событий из Kafka отключено
type Config struct {
	Brokers []string
	Topic   string `validate:"required_with=Brokers"`
	GroupID string `validate:"required_with=Brokers"`
}
