package main

import (
	"context"
	"time"

	"github.com/google/wire"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/config"
	"github.com/livekit/livekit-server-sdk/pkg/logger"
	"github.com/livekit/livekit-server-sdk/pkg/service"
	"github.com/livekit/livekit-server-sdk/pkg/webhook"
)

const (
	redisPingTimeout = 3 * time.Second
	refreshDebounce  = 500 * time.Millisecond
)

var ServerSet = wire.NewSet(
	createKeyProvider,
	createRedisClient,
	createRoomClient,
	createReceiver,
	createDeduper,
	createNotifier,
	createFeed,
	NewRoomTracker,
	createPoller,
	wire.Bind(new(RoomLister), new(*service.RoomServiceClient)),
	NewSDKServer,
)

func createKeyProvider(conf *config.Config) auth.KeyProvider {
	return conf.KeyProvider()
}

// createRedisClient returns nil when redis is not configured
func createRedisClient(conf *config.Config) (redis.UniversalClient, error) {
	if !conf.Redis.IsConfigured() {
		return nil, nil
	}

	redis.SetLogger(logger.NewPrintfAdapter(logger.GetLogger().WithName("redis")))
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{conf.Redis.Address},
		Username: conf.Redis.Username,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, errors.Wrap(err, "unable to connect to redis")
	}
	logger.Infow("connected to redis", "address", conf.Redis.Address)
	return rc, nil
}

func createRoomClient(conf *config.Config) (*service.RoomServiceClient, error) {
	return service.NewRoomServiceClient(conf.URL, conf.APIKey, conf.APISecret,
		service.WithClientLogger(logger.GetLogger().WithName("roomservice")))
}

func createReceiver(keyProvider auth.KeyProvider) (*webhook.Receiver, error) {
	return webhook.NewReceiverWithKeyProvider(keyProvider,
		webhook.WithLogger(logger.GetLogger().WithName("webhook")))
}

// createDeduper prefers redis so that replicas share what they have seen.
// Deduplication is off without redis and with a zero local size.
func createDeduper(conf *config.Config, rc redis.UniversalClient) webhook.Deduper {
	dedupe := conf.WebHook.Dedupe
	if rc != nil {
		return webhook.NewRedisDeduper(rc, dedupe.TTL)
	}
	if dedupe.Size <= 0 {
		return nil
	}
	return webhook.NewLocalDeduper(dedupe.Size, dedupe.TTL)
}

// createNotifier forwards accepted events to webhook.urls, nil when none are set
func createNotifier(conf *config.Config) (webhook.Notifier, error) {
	if len(conf.WebHook.URLs) == 0 {
		return nil, nil
	}
	n, err := webhook.NewDefaultNotifier(conf.WebHook.APIKey, conf.WebHookSecret(), conf.WebHook.URLs,
		webhook.WithNotifierLogger(logger.GetLogger().WithName("notifier")))
	if err != nil {
		return nil, err
	}
	return n, nil
}

func createFeed(conf *config.Config) *webhook.Feed {
	return webhook.NewFeed(conf.WebHook.FeedSize, logger.GetLogger().WithName("feed"))
}

func createPoller(conf *config.Config, client RoomLister, tracker *RoomTracker) *Poller {
	return NewPoller(client, tracker, conf.PollInterval, refreshDebounce)
}
