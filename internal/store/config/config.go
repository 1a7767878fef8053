package config

// DBDsn пустой - данные хранятся в памяти
type Config struct {
	DBDsn string
}
