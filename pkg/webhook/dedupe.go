// Copyright 2023 LiveKit, Inc.
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

package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "webhook_event:"

// Deduper remembers event ids so that redelivered events are processed once.
type Deduper interface {
	// MarkSeen records id, returning false when it was already recorded
	MarkSeen(ctx context.Context, id string) (bool, error)
	// Forget drops id so a later redelivery is processed again
	Forget(ctx context.Context, id string) error
}

// LocalDeduper keeps ids in memory, for a single receiving process.
type LocalDeduper struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

func NewLocalDeduper(size int, ttl time.Duration) *LocalDeduper {
	return &LocalDeduper{
		seen: expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

func (d *LocalDeduper) MarkSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen.Peek(id); ok {
		return false, nil
	}
	d.seen.Add(id, struct{}{})
	return true, nil
}

func (d *LocalDeduper) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	d.seen.Remove(id)
	d.mu.Unlock()
	return nil
}

// RedisDeduper shares seen ids between receivers behind a load balancer.
type RedisDeduper struct {
	rc  redis.UniversalClient
	ttl time.Duration
}

func NewRedisDeduper(rc redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{
		rc:  rc,
		ttl: ttl,
	}
}

func (d *RedisDeduper) MarkSeen(ctx context.Context, id string) (bool, error) {
	return d.rc.SetNX(ctx, dedupeKeyPrefix+id, time.Now().Unix(), d.ttl).Result()
}

func (d *RedisDeduper) Forget(ctx context.Context, id string) error {
	return d.rc.Del(ctx, dedupeKeyPrefix+id).Err()
}
