package e2

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indicationsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ric_sdk_indications_received_total",
		Help: "Indications delivered to consumers, by subscription.",
	}, []string{"subscription"})

	rebinds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ric_sdk_stream_rebinds_total",
		Help: "Indication stream rebinds caused by task relocation.",
	}, []string{"subscription"})
)
