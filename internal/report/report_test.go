package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Record(ctx context.Context, rec Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockSink) Close() error {
	return m.Called().Error(0)
}

func TestMultiSink_FansOutAndJoinsErrors(t *testing.T) {
	rec := Record{BatchID: "b", Status: StatusCompleted}

	ok := &mockSink{}
	ok.On("Record", mock.Anything, rec).Return(nil)
	ok.On("Close").Return(nil)
	bad := &mockSink{}
	bad.On("Record", mock.Anything, rec).Return(errors.New("db down"))
	bad.On("Close").Return(nil)

	m := NewMultiSink(zap.NewNop(), ok, bad)
	err := m.Record(context.Background(), rec)
	assert.ErrorContains(t, err, "db down")
	assert.NoError(t, m.Close())

	ok.AssertExpectations(t)
	bad.AssertExpectations(t)
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.Record(context.Background(), Record{}))
	assert.NoError(t, s.Close())
}

func TestEncodeMessage(t *testing.T) {
	body, err := encodeMessage(Record{
		BatchID:        "20240101_000000-deadbeef",
		VideoRef:       "uploads/video.mp4",
		FrameCount:     100,
		ExtractedCount: 3,
		Status:         StatusCompleted,
		ProcessingTime: 1500 * time.Millisecond,
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "completed", decoded["status"])
	assert.Equal(t, 1.5, decoded["processing_time"])
	assert.Equal(t, float64(3), decoded["extracted_count"])
	assert.NotEmpty(t, decoded["created_at"])
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
