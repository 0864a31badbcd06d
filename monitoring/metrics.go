package monitoring

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DrawsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_draws_total",
		Help: "Numbers drawn across all games",
	})

	BroadcastEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bingo_broadcast_events_total",
		Help: "Events fanned out to rooms, by event type",
	}, []string{"type"})

	DroppedSendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_dropped_sends_total",
		Help: "Events dropped because a subscriber send buffer was full",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bingo_connected_clients",
		Help: "Currently connected websocket clients",
	})

	AutoMarksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_auto_marks_total",
		Help: "Numbers marked by auto-play reconciliation",
	})

	WinnersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bingo_winners_total",
		Help: "Winners verified across all games",
	})
)

// Handler exposes the prometheus registry on the gin router.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
