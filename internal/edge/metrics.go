package edge

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "survey_edge"

// metrics はエッジランタイムのメトリクス。
type metrics struct {
	gateDecisions   *prometheus.CounterVec
	originResponses *prometheus.CounterVec
}

// newMetrics はメトリクスを生成してregに登録する。
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "gate_decisions_total",
			Help:      "Basic認証ゲートの判定数",
		}, []string{"kind"}),
		originResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "origin_responses_total",
			Help:      "オリジンごとのレスポンス数",
		}, []string{"origin", "status"}),
	}
	reg.MustRegister(m.gateDecisions, m.originResponses)
	return m
}

// observeOrigin はオリジンのレスポンスを記録する。
func (m *metrics) observeOrigin(origin string, status int) {
	m.originResponses.WithLabelValues(origin, strconv.Itoa(status)).Inc()
}
