//go:build integration

package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"askme/internal/platform/config"
	"askme/internal/platform/redis"
	"askme/internal/workflow"
	"askme/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	cache *workflow.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	container := containers.NewRedisContainer(s.T())
	client, err := redis.New(config.RedisConfig{
		URL:          container.URL,
		PoolSize:     5,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	s.Require().NoError(err)
	s.cache = workflow.NewRedisCache(client)
}

func (s *RedisCacheSuite) TestTakeIsOneTime() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Put(ctx, "req-1", "Jane Doe", time.Minute))

	value, ok, err := s.cache.Take(ctx, "req-1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("Jane Doe", value)

	_, ok, err = s.cache.Take(ctx, "req-1")
	s.Require().NoError(err)
	s.False(ok, "GETDEL must consume the entry")
}

func (s *RedisCacheSuite) TestMissingKey() {
	_, ok, err := s.cache.Take(context.Background(), "never-put")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestTTLExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Put(ctx, "req-ttl", "Jane Doe", 500*time.Millisecond))

	time.Sleep(time.Second)

	_, ok, err := s.cache.Take(ctx, "req-ttl")
	s.Require().NoError(err)
	s.False(ok, "entry must be gone after its TTL")
}

func (s *RedisCacheSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Put(ctx, "req-del", "Jane Doe", time.Minute))
	s.Require().NoError(s.cache.Delete(ctx, "req-del"))

	_, ok, err := s.cache.Take(ctx, "req-del")
	s.Require().NoError(err)
	s.False(ok)
}
