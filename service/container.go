package service

import (
	"sync/atomic"

	"github.com/saiset-co/sai-request/client"
	"github.com/saiset-co/sai-request/guard"
	"github.com/saiset-co/sai-request/logger"
	"github.com/saiset-co/sai-request/metrics"
	"github.com/saiset-co/sai-request/notify"
	"github.com/saiset-co/sai-request/types"
)

// Container holds the components of one Service. Nothing here is global.
type Container struct {
	Config    atomic.Pointer[types.ConfigManager]
	Logger    atomic.Pointer[logger.Manager]
	Metrics   atomic.Pointer[metrics.Manager]
	Cache     atomic.Pointer[types.CacheManager]
	Storage   atomic.Pointer[types.StorageManager]
	WebSocket atomic.Pointer[notify.WebSocketNotifier]
	Notifier  atomic.Pointer[notify.Fanout]
	Client    atomic.Pointer[client.Client]
	Session   atomic.Pointer[guard.Session]
	Guard     atomic.Pointer[guard.Guard]
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) SetConfig(config types.ConfigManager) {
	c.Config.Store(&config)
}

func (c *Container) SetCache(cache types.CacheManager) {
	c.Cache.Store(&cache)
}

func (c *Container) SetStorage(storage types.StorageManager) {
	c.Storage.Store(&storage)
}

// lifecycles lists the managed components in start order.
func (c *Container) lifecycles() []namedLifecycle {
	var out []namedLifecycle

	if ptr := c.Config.Load(); ptr != nil {
		if manager, ok := (*ptr).(types.LifecycleManager); ok {
			out = append(out, namedLifecycle{"config", manager})
		}
	}
	if m := c.Logger.Load(); m != nil {
		out = append(out, namedLifecycle{"logger", m})
	}
	if m := c.Metrics.Load(); m != nil {
		out = append(out, namedLifecycle{"metrics", m})
	}
	if ptr := c.Cache.Load(); ptr != nil {
		out = append(out, namedLifecycle{"cache", *ptr})
	}
	if ptr := c.Storage.Load(); ptr != nil {
		out = append(out, namedLifecycle{"storage", *ptr})
	}
	if m := c.WebSocket.Load(); m != nil {
		out = append(out, namedLifecycle{"websocket", m})
	}
	if m := c.Client.Load(); m != nil {
		out = append(out, namedLifecycle{"client", m})
	}

	return out
}

type namedLifecycle struct {
	name    string
	manager types.LifecycleManager
}
