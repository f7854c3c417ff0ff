package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/student-management/pkg/config"
)

func TestNewRedisRequiresHost(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{})
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
