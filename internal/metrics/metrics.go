package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Document upload outcomes.
const (
	DocumentLoaded   = "loaded"
	DocumentRejected = "rejected"
	DocumentEmpty    = "empty"
	DocumentFailed   = "failed"
)

type Metrics struct {
	registry         *prometheus.Registry
	documents        *prometheus.CounterVec
	quizzesStarted   prometheus.Counter
	quizzesCompleted prometheus.Counter
	answers          *prometheus.CounterVec
	scores           prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		documents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizbot_documents_total",
				Help: "Uploaded documents by outcome",
			},
			[]string{"result"},
		),
		quizzesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "quizbot_quizzes_started_total",
			Help: "Quizzes started or restarted",
		}),
		quizzesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "quizbot_quizzes_completed_total",
			Help: "Quizzes answered to the end",
		}),
		answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quizbot_answers_total",
				Help: "Recorded answers by kind (choice or text)",
			},
			[]string{"kind"},
		),
		scores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quizbot_quiz_score",
			Help:    "Final quiz scores on the 0-10 scale",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
	}
}

func (m *Metrics) ObserveDocument(result string) {
	m.documents.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveQuizStarted() {
	m.quizzesStarted.Inc()
}

func (m *Metrics) ObserveAnswer(kind string) {
	m.answers.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveQuizCompleted(score float64) {
	m.quizzesCompleted.Inc()
	m.scores.Observe(score)
}

// Handler serves /healthz and /metrics.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	return r
}

// Serve runs the ops server until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
