package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/viacar/internal/events"
	"github.com/example/viacar/internal/models"
	"github.com/example/viacar/internal/places"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total ride events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	placesRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_places_recorded_total",
		Help: "Total place points written to the popular index",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, placesRecorded, redisErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "ride-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "popular-places-consumer"
	}
	geoKey := os.Getenv("POPULAR_GEO_KEY")
	if geoKey == "" {
		geoKey = "popular_places_geo"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: redisAddr})
	index := places.NewPopularIndexWithClient(rc, geoKey)

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		msgsConsumed.Inc()

		var ev events.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			msgsInvalid.Inc()
			log.Printf("invalid message: %v", err)
			continue
		}
		if ev.Type != events.TypeRidePublished || ev.Ride == nil {
			continue
		}

		for _, pt := range placePoints(*ev.Ride) {
			if err := recordWithRetry(ctx, index, pt, 3, 200*time.Millisecond); err != nil {
				redisErrors.Inc()
				log.Printf("popular index update failed for place=%s: %v", pt.PlaceID, err)
				continue
			}
			placesRecorded.Inc()
		}
	}
}

// placePoints flattens a published ride into the points worth indexing:
// every stop, plus pickup and dropoff when they carry a place id.
func placePoints(d models.RideDraft) []models.StopPoint {
	var pts []models.StopPoint
	if d.Pickup != nil && d.Pickup.PlaceID != "" {
		pts = append(pts, models.StopPoint{PlaceID: d.Pickup.PlaceID, Lat: d.Pickup.Lat, Lng: d.Pickup.Lng, Address: d.Pickup.Address})
	}
	for _, st := range d.Stops {
		if st.PlaceID != "" {
			pts = append(pts, st)
		}
	}
	if d.Dropoff != nil && d.Dropoff.PlaceID != "" {
		pts = append(pts, models.StopPoint{PlaceID: d.Dropoff.PlaceID, Lat: d.Dropoff.Lat, Lng: d.Dropoff.Lng, Address: d.Dropoff.Address})
	}
	return pts
}

// PlaceRecorder is the write half of the popular index; small enough to
// fake in tests. *places.PopularIndex satisfies it.
type PlaceRecorder interface {
	Record(ctx context.Context, pt models.StopPoint) error
}

// recordWithRetry writes one place point with retry/backoff. A Record that
// keeps failing returns the last error.
func recordWithRetry(ctx context.Context, rec PlaceRecorder, pt models.StopPoint, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = rec.Record(ctx, pt); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
