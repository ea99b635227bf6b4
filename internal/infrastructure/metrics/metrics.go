package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_lens_resolutions_total",
		Help: "Total prediction resolutions by expand policy",
	}, []string{"policy"})

	labelLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_lens_label_lookups_total",
		Help: "Recipe index lookups by outcome",
	}, []string{"outcome"})

	resultsPerResolution = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recipe_lens_results_per_resolution",
		Help:    "Number of resolved results returned per resolution",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	classifierRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_lens_classifier_requests_total",
		Help: "Classifier calls by provider and outcome",
	}, []string{"provider", "outcome"})

	classifierDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recipe_lens_classifier_duration_seconds",
		Help:    "Classifier call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	classifierCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_lens_classifier_cache_total",
		Help: "Classifier prediction cache lookups",
	}, []string{"result"})

	registerOnce sync.Once
)

// Init 註冊所有指標，只在啟動時生效一次
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			resolutions,
			labelLookups,
			resultsPerResolution,
			classifierRequests,
			classifierDuration,
			classifierCache,
		)
	})
}

// ObserveResolution 記錄一次預測解析
func ObserveResolution(policy string, matched, unmatched, results int) {
	resolutions.WithLabelValues(policy).Inc()
	labelLookups.WithLabelValues("matched").Add(float64(matched))
	labelLookups.WithLabelValues("unmatched").Add(float64(unmatched))
	resultsPerResolution.Observe(float64(results))
}

// ObserveClassifier 記錄一次分類器呼叫
func ObserveClassifier(provider string, took time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	classifierRequests.WithLabelValues(provider, outcome).Inc()
	classifierDuration.WithLabelValues(provider).Observe(took.Seconds())
}

// ObserveCache 記錄預測快取命中與否
func ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	classifierCache.WithLabelValues(result).Inc()
}
