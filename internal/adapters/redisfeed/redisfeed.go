// Package redisfeed conecta el bot con Redis: lee probabilidades externas de
// un HASH y publica el resultado de cada ciclo en un STREAM.
package redisfeed

import (
	"github.com/redis/go-redis/v9"
)

const (
	DefaultProbabilitiesKey = "polyedge:probabilities"
	DefaultStream           = "polyedge:cycles"
	defaultStreamMaxLen     = 10_000
)

// Config es la sección redis de la configuración.
type Config struct {
	Addr             string
	DB               int
	Username         string
	Password         string
	ProbabilitiesKey string
	Stream           string
	StreamMaxLen     int64
}

func (c Config) withDefaults() Config {
	if c.ProbabilitiesKey == "" {
		c.ProbabilitiesKey = DefaultProbabilitiesKey
	}
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.StreamMaxLen <= 0 {
		c.StreamMaxLen = defaultStreamMaxLen
	}
	return c
}

// NewClient abre el cliente compartido por la fuente y el publisher.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Username: cfg.Username,
		Password: cfg.Password,
	})
}
