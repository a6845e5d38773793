package redis

import (
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
)

func TestOptions_Timeouts(t *testing.T) {
	opts := options(config.RedisConfig{Addr: "cache:6379", DB: 2, PoolSize: 8, Timeout: 300 * time.Millisecond})
	if opts.Addr != "cache:6379" || opts.DB != 2 || opts.PoolSize != 8 {
		t.Errorf("options = %+v", opts)
	}
	if opts.ReadTimeout != 300*time.Millisecond || opts.WriteTimeout != 300*time.Millisecond {
		t.Errorf("read/write timeout = %v/%v", opts.ReadTimeout, opts.WriteTimeout)
	}
	if opts.DialTimeout != 600*time.Millisecond {
		t.Errorf("DialTimeout = %v, want 600ms", opts.DialTimeout)
	}

	opts = options(config.RedisConfig{Addr: "cache:6379"})
	if opts.ReadTimeout != 0 || opts.DialTimeout != 0 {
		t.Errorf("zero Timeout must leave the driver defaults, got %+v", opts)
	}
}

func TestIsNilError(t *testing.T) {
	if !IsNilError(Nil) {
		t.Error("Nil must be a nil error")
	}
	if !IsNilError(fmt.Errorf("get: %w", redis.Nil)) {
		t.Error("wrapped Nil must be a nil error")
	}
	if IsNilError(fmt.Errorf("connection refused")) {
		t.Error("other errors are not nil errors")
	}
}
