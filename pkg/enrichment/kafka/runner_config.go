package kafka

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EnrichmentConfig struct {
	Enabled bool

	Brokers     []string
	Topic       string
	OutputTopic string
	GroupID     string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool

	// DedupeSize bounds how many devices are remembered for sequence checks.
	DedupeSize int
	// PublishQueue is the publisher buffer; a full buffer drops events.
	PublishQueue int
}

func FromEnv() EnrichmentConfig {
	enabled := strings.ToLower(strings.TrimSpace(os.Getenv("ENRICH_ENABLED"))) == "true"
	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := strings.TrimSpace(os.Getenv("ENRICH_TOPIC"))
	if topic == "" {
		topic = "geopin.pointer"
	}
	out := strings.TrimSpace(os.Getenv("ENRICH_OUTPUT_TOPIC"))
	if out == "" {
		out = "geopin.encoded"
	}
	group := strings.TrimSpace(os.Getenv("KAFKA_GROUP_ID"))
	if group == "" {
		group = "geopin-enricher"
	}

	return EnrichmentConfig{
		Enabled:          enabled,
		Brokers:          split(brokers),
		Topic:            topic,
		OutputTopic:      out,
		GroupID:          group,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		InitialOldest:    false,
		DedupeSize:       atoi(os.Getenv("ENRICH_DEDUPE_SIZE"), 8192),
		PublishQueue:     atoi(os.Getenv("ENRICH_PUBLISH_QUEUE"), 1024),
	}
}

func split(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func atoi(s string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
		return n
	}
	return def
}
