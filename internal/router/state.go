// Package router is the forwarding engine: it runs every received frame
// through classification, local delivery or forwarding, and ARP handling.
package router

import (
	"firestige.xyz/router/internal/arp"
	"firestige.xyz/router/internal/pending"
	"firestige.xyz/router/internal/route"
)

// RouterState is the mutable state shared by every frame the engine handles.
type RouterState struct {
	Table *route.Table
	Cache *arp.Cache
	Queue *pending.Queue
}

// NewRouterState returns state around table with an empty ARP cache and
// pending queue.
func NewRouterState(table *route.Table) *RouterState {
	return &RouterState{
		Table: table,
		Cache: arp.NewCache(),
		Queue: pending.NewQueue(),
	}
}
