package events

import (
	"context"
	"encoding/json"
	"fmt"

	"outreach_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Pub/sub topics consumed by the frontend gateway.
const (
	TopicCampaignsListUpdates = "campaigns:list:updates"
	TopicAccountStatus        = "linkedin:account:status"
)

// TopicCampaignStats returns the per-campaign stats topic.
func TopicCampaignStats(campaignID fmt.Stringer) string {
	return "campaign:" + campaignID.String() + ":stats"
}

// RedisPublisher forwards selected domain events to Redis pub/sub so that
// other services (and the realtime gateway) can react to them. Publishing is
// best-effort: a Redis outage never fails the operation that emitted the event.
type RedisPublisher struct {
	client redis.UniversalClient
	log    *logger.Logger
}

// NewRedisPublisher creates a publisher on the given Redis client.
func NewRedisPublisher(client redis.UniversalClient, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

// Register subscribes the publisher to the events it mirrors to Redis.
func (p *RedisPublisher) Register(bus Bus) {
	bus.Subscribe(CampaignStatsUpdated{}.EventName(), HandlerFunc(p.onCampaignStats))
	bus.Subscribe(CampaignsListUpdated{}.EventName(), HandlerFunc(p.onCampaignsList))
	bus.Subscribe(ProviderAccountStatusChanged{}.EventName(), HandlerFunc(p.onAccountStatus))
}

func (p *RedisPublisher) onCampaignStats(ctx context.Context, event Event) error {
	evt, ok := event.(CampaignStatsUpdated)
	if !ok {
		return nil
	}
	p.publish(ctx, TopicCampaignStats(evt.CampaignID), evt)
	return nil
}

func (p *RedisPublisher) onCampaignsList(ctx context.Context, event Event) error {
	evt, ok := event.(CampaignsListUpdated)
	if !ok {
		return nil
	}
	p.publish(ctx, TopicCampaignsListUpdates, evt)
	return nil
}

func (p *RedisPublisher) onAccountStatus(ctx context.Context, event Event) error {
	evt, ok := event.(ProviderAccountStatusChanged)
	if !ok {
		return nil
	}
	p.publish(ctx, TopicAccountStatus, evt)
	return nil
}

func (p *RedisPublisher) publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.PublishFailed(topic, err)
		return
	}
	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		p.log.PublishFailed(topic, err)
	}
}
