// Package observability holds the Prometheus metrics exported on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phototag",
		Name:      "photos_classified_total",
		Help:      "Total number of photos run through the face classifier",
	}, []string{"result"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "phototag",
		Name:      "faces_detected_total",
		Help:      "Total number of faces kept after score filtering",
	})

	FacesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phototag",
		Name:      "faces_matched_total",
		Help:      "Faces assigned to a tag, by whether the tag was reused or created",
	}, []string{"outcome"})

	MatchDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "phototag",
		Name:      "face_match_distance",
		Help:      "Euclidean distance to the nearest stored face",
		Buckets:   []float64{1, 2, 4, 6, 8, 10, 12, 15, 20, 30},
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "phototag",
		Name:      "inference_duration_seconds",
		Help:      "Duration of face classifier stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	FaceIndexSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "phototag",
		Name:      "face_index_size",
		Help:      "Number of embeddings in the last built face index",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "phototag",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
