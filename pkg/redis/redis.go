package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes how to reach Redis, sourced from environment variables.
type Config struct {
	URL          string `split_words:"true" default:""`
	ReadTimeout  int    `split_words:"true" default:"3"`
	WriteTimeout int    `split_words:"true" default:"3"`
	DialTimeout  int    `split_words:"true" default:"5"`
}

// Enabled reports whether a Redis URL was configured at all. The server runs
// without Redis; session snapshots simply stay in memory.
func (r *Config) Enabled() bool {
	return r.URL != ""
}

// New dials Redis and verifies the connection with a ping.
func (r *Config) New() (*redis.Client, error) {
	opts, err := redis.ParseURL(r.URL)
	if err != nil {
		return nil, err
	}

	opts.ReadTimeout = time.Duration(r.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(r.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(r.DialTimeout) * time.Second

	client := redis.NewClient(opts)

	cmd := client.Ping(context.Background())
	if cmd.Err() != nil {
		return nil, cmd.Err()
	}

	return client, nil
}
