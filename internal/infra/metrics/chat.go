package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatEventsTotal) }

var chatEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_events_total",
		Help: "Chat events handled, labeled by event.",
	},
	[]string{"event"}, // 'new_chat', 'select_chat', 'clear_all', 'message', 'suggestion', 'upload'
)

func IncChatEvent(event string) {
	chatEventsTotal.WithLabelValues(norm(event)).Inc()
}
