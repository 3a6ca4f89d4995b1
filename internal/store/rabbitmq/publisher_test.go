package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncJobMessage(t *testing.T) {
	body, err := EncodeSyncJob("01J0000000000000000000000", "me@example.com")
	require.NoError(t, err)
	assert.JSONEq(t, `{"job_id":"01J0000000000000000000000","account":"me@example.com"}`, string(body))

	m, err := DecodeSyncJob(body)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", m.Account)

	_, err = DecodeSyncJob([]byte(`{"account":"me@example.com"}`))
	assert.Error(t, err)
	_, err = DecodeSyncJob([]byte(`not json`))
	assert.Error(t, err)
}

func TestTopology(t *testing.T) {
	mainQ, retryQ, dlqQ := Topology("sync_jobs")
	assert.Equal(t, "sync_jobs", mainQ)
	assert.Equal(t, "sync_jobs.retry", retryQ)
	assert.Equal(t, "sync_jobs.dlq", dlqQ)
}
