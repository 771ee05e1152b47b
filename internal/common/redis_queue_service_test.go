package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeQueueItem(t *testing.T) {
	item, err := decodeQueueItem(map[string]interface{}{
		"data": `{"event_id":"evt-1","payload":{"object_type":"Job"},"received_at":"2024-05-01T10:00:00Z"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", item.EventID)
	assert.JSONEq(t, `{"object_type":"Job"}`, string(item.Payload))
}

func TestDecodeQueueItem_Malformed(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"missing data": {},
		"not a string": {"data": 42},
		"bad json":     {"data": "{"},
		"no event id":  {"data": `{"payload":{}}`},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeQueueItem(values)
			assert.Error(t, err)
		})
	}
}
