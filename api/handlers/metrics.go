package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docai_uploads_total",
		Help: "Uploaded documents by outcome.",
	}, []string{"status"})

	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docai_queries_total",
		Help: "Chat queries by transport mode and outcome.",
	}, []string{"mode", "status"})

	streamedTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docai_streamed_tokens_total",
		Help: "Delta tokens delivered over SSE.",
	})
)
