// Package remotesync ships finished rides off the device. Uploads are
// one-shot: a failure is reported to the caller and never retried here.
package remotesync

import (
	"encoding/json"
	"fmt"
	"time"

	"backend-groupride/internal/ride"
)

// Message is the body published for every uploaded ride.
type Message struct {
	DeviceID string      `json:"deviceId"`
	SentAt   time.Time   `json:"sentAt"`
	Record   ride.Record `json:"record"`
}

func encodeMessage(deviceID string, rec ride.Record, now time.Time) ([]byte, error) {
	body, err := json.Marshal(Message{DeviceID: deviceID, SentAt: now, Record: rec})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ride upload: %w", err)
	}
	return body, nil
}

var (
	_ ride.Uploader = (*RedisQueue)(nil)
	_ ride.Uploader = (*AMQPUploader)(nil)
)
