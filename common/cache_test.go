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

package common_test

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-riskparity/common"
)

var _ = Describe("ResultCache", func() {
	var (
		ctx     context.Context
		payload []byte
	)

	BeforeEach(func() {
		ctx = context.Background()
		payload = []byte(`{"runId":"0d5f1c0e","strategies":["mv","ew","erc"]}`)
	})

	Context("with only a local cache", func() {
		var (
			cache *common.ResultCache
		)

		BeforeEach(func() {
			var err error
			cache, err = common.NewResultCache(4, nil, time.Hour)
			Expect(err).To(BeNil())
		})

		It("returns what was stored", func() {
			Expect(cache.Set(ctx, "key", payload)).To(Succeed())
			data, ok, err := cache.Get(ctx, "key")
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal(payload))
		})

		It("reports a miss", func() {
			data, ok, err := cache.Get(ctx, "missing")
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())
			Expect(data).To(BeNil())
		})
	})

	Context("with redis configured", func() {
		var (
			cache      *common.ResultCache
			rdb        *redis.Client
			mock       redismock.ClientMock
			compressed []byte
			ttl        time.Duration
		)

		BeforeEach(func() {
			var err error
			ttl = 10 * time.Minute
			rdb, mock = redismock.NewClientMock()
			cache, err = common.NewResultCache(4, rdb, ttl)
			Expect(err).To(BeNil())
			compressed, err = common.Compress(payload)
			Expect(err).To(BeNil())
		})

		AfterEach(func() {
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("writes through to redis", func() {
			mock.ExpectSet("key", compressed, ttl).SetVal("OK")
			Expect(cache.Set(ctx, "key", payload)).To(Succeed())
		})

		It("reads from redis on a local miss", func() {
			mock.ExpectGet("key").SetVal(string(compressed))
			data, ok, err := cache.Get(ctx, "key")
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal(payload))

			// second read is served locally
			data, ok, err = cache.Get(ctx, "key")
			Expect(err).To(BeNil())
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal(payload))
		})

		It("treats redis nil as a miss", func() {
			mock.ExpectGet("key").RedisNil()
			_, ok, err := cache.Get(ctx, "key")
			Expect(err).To(BeNil())
			Expect(ok).To(BeFalse())
		})

		It("surfaces redis errors", func() {
			mock.ExpectGet("key").SetErr(errors.New("connection refused"))
			_, ok, err := cache.Get(ctx, "key")
			Expect(err).ToNot(BeNil())
			Expect(ok).To(BeFalse())
		})
	})

	Context("when deriving keys", func() {
		It("is deterministic", func() {
			Expect(common.CacheKey([]byte("a"), []byte("b"))).To(Equal(common.CacheKey([]byte("a"), []byte("b"))))
		})

		It("separates parts", func() {
			Expect(common.CacheKey([]byte("ab"), []byte("c"))).ToNot(Equal(common.CacheKey([]byte("a"), []byte("bc"))))
		})
	})
})
