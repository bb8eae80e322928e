package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"academy-platform/internal/adapters/messaging"
)

func TestParsePartitionOffset(t *testing.T) {
	partition, offset, err := parsePartitionOffset("2:123")
	require.NoError(t, err)
	assert.Equal(t, int32(2), partition)
	assert.Equal(t, int64(123), offset)

	for _, bad := range []string{"", "1", "a:1", "1:b", "-1:4", "1:2:3"} {
		_, _, err := parsePartitionOffset(bad)
		assert.Error(t, err, bad)
	}
}

func TestRetryRecord(t *testing.T) {
	record := &kgo.Record{
		Key:   []byte("student-1"),
		Value: []byte(`{"course_id":"x"}`),
		Headers: []kgo.RecordHeader{
			{Key: messaging.HeaderOriginalTopic, Value: []byte("academy.lessons.finished")},
			{Key: messaging.HeaderErrorType, Value: []byte("handler_error")},
		},
	}

	retry, err := retryRecord(record, "")
	require.NoError(t, err)
	assert.Equal(t, "academy.lessons.finished", retry.Topic)
	assert.Equal(t, record.Value, retry.Value)
	assert.Empty(t, retry.Headers)

	retry, err = retryRecord(record, "academy.replay")
	require.NoError(t, err)
	assert.Equal(t, "academy.replay", retry.Topic)

	_, err = retryRecord(&kgo.Record{Offset: 7}, "")
	assert.ErrorContains(t, err, "--target-topic")
}

func TestDescribe(t *testing.T) {
	info := describe(&kgo.Record{Headers: []kgo.RecordHeader{
		{Key: messaging.HeaderErrorString, Value: []byte("boom")},
	}})
	assert.Equal(t, deadLetterInfo{OriginalTopic: "N/A", ErrorType: "N/A", ErrorString: "boom"}, info)
}
