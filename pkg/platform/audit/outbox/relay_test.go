package outbox_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/audit/outbox"
	"evidentia/pkg/platform/audit/outbox/mocks"
)

func entries(n int) []audit.OutboxEntry {
	tenant := id.NewTenantID()
	out := make([]audit.OutboxEntry, 0, n)
	for range n {
		out = append(out, audit.OutboxEntry{
			ID:            uuid.New(),
			TenantID:      tenant,
			AggregateType: "evidence",
			AggregateID:   uuid.NewString(),
			EventType:     "evidence.sealed",
			Payload:       []byte(`{}`),
			CreatedAt:     time.Now(),
		})
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRelayRunOncePublishesClaimedBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	batch := entries(3)

	source.EXPECT().
		Process(gomock.Any(), 50, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ int, fn func(context.Context, []audit.OutboxEntry) error) (int, error) {
			if err := fn(ctx, batch); err != nil {
				return 0, err
			}
			return len(batch), nil
		})
	publisher.EXPECT().Publish(gomock.Any(), batch).Return(nil)

	relay := outbox.NewRelay(source, publisher,
		outbox.WithBatchSize(50),
		outbox.WithLogger(quietLogger()),
		outbox.WithMetrics(audit.NewMetrics(prometheus.NewRegistry())),
	)
	n, err := relay.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRelayRunOnceSurfacesPublishFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	batch := entries(1)
	brokerDown := errors.New("broker unavailable")

	source.EXPECT().
		Process(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ int, fn func(context.Context, []audit.OutboxEntry) error) (int, error) {
			return 0, fn(ctx, batch)
		})
	publisher.EXPECT().Publish(gomock.Any(), batch).Return(brokerDown)

	relay := outbox.NewRelay(source, publisher, outbox.WithLogger(quietLogger()))
	_, err := relay.RunOnce(context.Background())
	assert.ErrorIs(t, err, brokerDown)
}

func TestJanitorPurgeOnceUsesRetentionCutoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)

	before := time.Now().UTC().Add(-24 * time.Hour)
	source.EXPECT().
		PurgePublished(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cutoff time.Time) (int64, error) {
			assert.WithinDuration(t, before, cutoff, 5*time.Second)
			return 7, nil
		})

	j := outbox.NewJanitor(source, "0 3 * * *", 24*time.Hour, quietLogger())
	n, err := j.PurgeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestJanitorRejectsInvalidSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)
	j := outbox.NewJanitor(mocks.NewMockSource(ctrl), "not a cron", time.Hour, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Error(t, j.Start(ctx))
}
