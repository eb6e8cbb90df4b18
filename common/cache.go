// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
)

const (
	cacheKeyPrefix = "riskparity:result:"
)

// ResultCache stores serialized backtest results. Values are lz4 compressed and kept
// in a local LRU; when a redis client is configured they are also written through to
// redis with the configured TTL.
type ResultCache struct {
	local *lru.Cache
	rdb   *redis.Client
	ttl   time.Duration
}

// NewResultCache creates a cache holding up to size entries locally. rdb may be nil.
func NewResultCache(size int, rdb *redis.Client, ttl time.Duration) (*ResultCache, error) {
	if size <= 0 {
		size = 16
	}

	local, err := lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return nil, err
	}

	return &ResultCache{
		local: local,
		rdb:   rdb,
		ttl:   ttl,
	}, nil
}

// SetupCache builds a ResultCache from the `cache.*` viper settings
func SetupCache() (*ResultCache, error) {
	var rdb *redis.Client
	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return nil, err
		}

		rdb = redis.NewClient(opt)
	}

	ttl := time.Duration(viper.GetInt("cache.ttl")) * time.Second
	return NewResultCache(viper.GetInt("cache.local_size"), rdb, ttl)
}

// CacheKey derives a cache key from the blake3 digest of all parts
func CacheKey(parts ...[]byte) string {
	hasher := blake3.New()
	for _, part := range parts {
		// errors are impossible when writing to a hash
		_, _ = hasher.Write(part)
		_, _ = hasher.Write([]byte{0})
	}
	return cacheKeyPrefix + hex.EncodeToString(hasher.Sum(nil))
}

// Set stores data under key
func (c *ResultCache) Set(ctx context.Context, key string, data []byte) error {
	compressed, err := Compress(data)
	if err != nil {
		return err
	}
	c.local.Add(key, compressed)

	if c.rdb != nil {
		return c.rdb.Set(ctx, key, compressed, c.ttl).Err()
	}
	return nil
}

// Get retrieves the data stored under key. The boolean is false on a cache miss.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, ok := c.local.Get(key); ok {
		data, err := Decompress(val.([]byte))
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}

	if c.rdb == nil {
		return nil, false, nil
	}

	compressed, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("Key", key).Msg("could not read from redis")
		return nil, false, err
	}

	data, err := Decompress(compressed)
	if err != nil {
		return nil, false, err
	}

	c.local.Add(key, compressed)
	return data, true, nil
}
