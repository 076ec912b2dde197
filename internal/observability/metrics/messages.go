package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type messageKey struct {
	agent    string
	itemType string
}

type routedKey struct {
	queryType string
}

type busCollector struct {
	mu       sync.Mutex
	messages map[messageKey]uint64
	routed   map[routedKey]uint64
	dropped  uint64
}

var messageCollector = &busCollector{
	messages: make(map[messageKey]uint64),
	routed:   make(map[routedKey]uint64),
}

// ObserveMessage records a chat message item handled by an agent.
func ObserveMessage(agent, itemType string) {
	messageCollector.mu.Lock()
	defer messageCollector.mu.Unlock()
	messageCollector.messages[messageKey{agent: agent, itemType: itemType}]++
}

// ObserveRouted records a user query dispatched to a specialist.
func ObserveRouted(queryType string) {
	messageCollector.mu.Lock()
	defer messageCollector.mu.Unlock()
	messageCollector.routed[routedKey{queryType: queryType}]++
}

// ObserveReplyDropped records a specialist reply that could not be
// forwarded because no user binding existed.
func ObserveReplyDropped() {
	messageCollector.mu.Lock()
	defer messageCollector.mu.Unlock()
	messageCollector.dropped++
}

func (c *busCollector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type messageMetric struct {
		messageKey
		value uint64
	}
	type routedMetric struct {
		routedKey
		value uint64
	}

	msgs := make([]messageMetric, 0, len(c.messages))
	for key, value := range c.messages {
		msgs = append(msgs, messageMetric{messageKey: key, value: value})
	}
	routed := make([]routedMetric, 0, len(c.routed))
	for key, value := range c.routed {
		routed = append(routed, routedMetric{routedKey: key, value: value})
	}

	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].agent == msgs[j].agent {
			return msgs[i].itemType < msgs[j].itemType
		}
		return msgs[i].agent < msgs[j].agent
	})
	sort.Slice(routed, func(i, j int) bool {
		return routed[i].queryType < routed[j].queryType
	})

	var builder strings.Builder
	builder.Grow(512)

	builder.WriteString("# HELP luminyield_messages_total Total number of chat message items handled per agent.\n")
	builder.WriteString("# TYPE luminyield_messages_total counter\n")
	for _, metric := range msgs {
		builder.WriteString(fmt.Sprintf("luminyield_messages_total{agent=\"%s\",item=\"%s\"} %d\n",
			escape(metric.agent), escape(metric.itemType), metric.value))
	}

	builder.WriteString("# HELP luminyield_routed_queries_total Total number of user queries dispatched to specialists.\n")
	builder.WriteString("# TYPE luminyield_routed_queries_total counter\n")
	for _, metric := range routed {
		builder.WriteString(fmt.Sprintf("luminyield_routed_queries_total{query_type=\"%s\"} %d\n",
			escape(metric.queryType), metric.value))
	}

	builder.WriteString("# HELP luminyield_replies_dropped_total Total number of specialist replies dropped for lack of a user binding.\n")
	builder.WriteString("# TYPE luminyield_replies_dropped_total counter\n")
	builder.WriteString(fmt.Sprintf("luminyield_replies_dropped_total %d\n", c.dropped))

	return builder.String()
}
