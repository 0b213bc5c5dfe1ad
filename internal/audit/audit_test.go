package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewRunRecord(t *testing.T) {
	run := NewRunRecord(RunExact)
	assert.NotEqual(t, uuid.Nil, run.RunID)
	assert.Equal(t, RunExact, run.Mode)
	assert.False(t, run.TS.IsZero())
	assert.Empty(t, run.Status)
}

func TestNopSinks(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishRun(context.Background(), RunRecord{}))
	assert.NoError(t, NopPublisher{}.Close())
	assert.NoError(t, NopArchiver{}.ArchiveRun(context.Background(), RunRecord{}, nil))
}
