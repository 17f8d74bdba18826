// SPDX-License-Identifier: MIT
// Package clustersync fans out a tormanager's bus events to every other
// manager attached to the same Tor daemon's control port, over Redis
// pub/sub. It extends server/service/database's Valkey/Redis sync-channel
// pattern (NewValkeySyncChannel, node-ID tagging to skip self-echo) from
// database-row replication to the tormanager event bus.
package clustersync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apimgr/torsentry/src/torcallback"
	"github.com/apimgr/torsentry/src/torctrl"
	"github.com/apimgr/torsentry/src/torevent"
	"github.com/apimgr/torsentry/src/tormanager"
)

// wireEvent is the JSON envelope published on the cluster channel.
type wireEvent struct {
	NodeID  string                 `json:"node_id"`
	Kind    string                 `json:"kind"` // "runtime" or "control"
	Runtime *tormanager.RuntimePayload `json:"runtime,omitempty"`
	Control *torctrl.Event         `json:"control,omitempty"`
}

// Bridge rebroadcasts one Manager's bootstrap RuntimeEvents (log events are
// not relayed) and its TorEvents over Redis and
// republishes events other nodes publish back into the local processors,
// tagged so every attached manager's observers see the same stream
// regardless of which instance's control-port connection produced it.
type Bridge struct {
	nodeID  string
	mgr     *tormanager.Manager
	client  *redis.Client
	channel string
	cancel  context.CancelFunc
}

// New creates a cluster bridge. addr is a Redis address ("host:port");
// channel defaults to "torsentry:tor-events" when empty.
func New(nodeID string, mgr *tormanager.Manager, addr, password string, db int, channel string) (*Bridge, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if channel == "" {
		channel = "torsentry:tor-events"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("clustersync: connect to redis: %w", err)
	}

	return &Bridge{
		nodeID:  nodeID,
		mgr:     mgr,
		client:  client,
		channel: channel,
	}, nil
}

// Start subscribes to the cluster channel and begins republishing the
// local manager's own events outward. Stop via Close.
func (b *Bridge) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.mgr.RuntimeEvents().Subscribe(torevent.NewObserver(tormanager.EventBootstrap, "clustersync", nil,
		torcallback.NewOnEvent(func(p tormanager.RuntimePayload) {
			b.publish(wireEvent{NodeID: b.nodeID, Kind: "runtime", Runtime: &p})
		})))

	b.mgr.TorEvents().Subscribe(torevent.NewObserver(tormanager.EventTorControl, "clustersync", nil,
		torcallback.NewOnEvent(func(ev torctrl.Event) {
			b.publish(wireEvent{NodeID: b.nodeID, Kind: "control", Control: &ev})
		})))

	go b.subscribeLoop(ctx)
}

// publish marshals and publishes ev on the cluster channel, best-effort.
func (b *Bridge) publish(ev wireEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = b.client.Publish(ctx, b.channel, data).Err()
}

// subscribeLoop listens for events other nodes publish and replays them
// into the local processors, skipping this node's own echo.
func (b *Bridge) subscribeLoop(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}
			var ev wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if ev.NodeID == b.nodeID {
				continue
			}
			switch ev.Kind {
			case "runtime":
				if ev.Runtime != nil {
					b.mgr.RuntimeEvents().Publish(tormanager.EventBootstrap, *ev.Runtime)
				}
			case "control":
				if ev.Control != nil {
					b.mgr.TorEvents().Publish(tormanager.EventTorControl, *ev.Control)
				}
			}
		}
	}
}

// Close stops the subscribe loop, unsubscribes the bridge's own
// observers, and closes the Redis client.
func (b *Bridge) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.mgr.UnsubscribeAllByTag("clustersync")
	return b.client.Close()
}
