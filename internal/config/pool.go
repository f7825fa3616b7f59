package config

// PoolConfig configures the connection pool.
type PoolConfig struct {
	MaxPoolSize int `yaml:"max_pool_size"`
}
