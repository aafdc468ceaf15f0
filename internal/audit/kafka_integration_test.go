//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/coastal-alert/internal/model"
)

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("ctas-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func TestKafkaPublisher_Record(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	topic := fmt.Sprintf("ctas-audit-%d", time.Now().UnixNano())

	publisher := NewKafkaPublisher(KafkaConfig{Brokers: []string{broker}, Topic: topic}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = publisher.Close() })

	rec := &model.AuditRecord{ID: "dispatch-1", Timestamp: time.Now(), ThreatLevel: model.ThreatLevelHigh, PushSent: 4}

	// The first write may race topic auto-creation
	require.Eventually(t, func() bool {
		return publisher.Record(ctx, rec) == nil
	}, 30*time.Second, time.Second)

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	var got model.AuditRecord
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "dispatch-1", got.ID)
	assert.Equal(t, 4, got.PushSent)
	assert.Equal(t, "dispatch-1", string(msg.Key))
}
