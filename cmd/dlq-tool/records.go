package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"academy-platform/internal/adapters/messaging"
)

type deadLetterInfo struct {
	OriginalTopic string
	ErrorType     string
	ErrorString   string
}

// describe reads the failure headers the bus attaches when it dead-letters a record.
func describe(record *kgo.Record) deadLetterInfo {
	info := deadLetterInfo{OriginalTopic: "N/A", ErrorType: "N/A", ErrorString: "N/A"}
	for _, h := range record.Headers {
		switch h.Key {
		case messaging.HeaderOriginalTopic:
			info.OriginalTopic = string(h.Value)
		case messaging.HeaderErrorType:
			info.ErrorType = string(h.Value)
		case messaging.HeaderErrorString:
			info.ErrorString = string(h.Value)
		}
	}
	return info
}

// retryRecord copies key and value to target, or to the original topic when target is empty.
func retryRecord(record *kgo.Record, target string) (*kgo.Record, error) {
	if target == "" {
		target = describe(record).OriginalTopic
	}
	if target == "" || target == "N/A" {
		return nil, fmt.Errorf("record at offset %d has no original topic; pass --target-topic", record.Offset)
	}
	return &kgo.Record{Topic: target, Key: record.Key, Value: record.Value}, nil
}

// parsePartitionOffset parses "partition:offset", e.g. 0:123.
func parsePartitionOffset(arg string) (int32, int64, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid format %q, expected partition:offset, e.g. 0:123", arg)
	}
	partition, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil || partition < 0 {
		return 0, 0, fmt.Errorf("invalid partition %q", parts[0])
	}
	offset, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset %q", parts[1])
	}
	return int32(partition), offset, nil
}
