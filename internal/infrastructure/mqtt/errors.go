package mqtt

import "errors"

// Sentinel errors for broker operations. Wrapped errors keep the paho
// cause; match with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: not connected")
	ErrConnectionFailed = errors.New("mqtt: connect failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects levels other than 0, 1 and 2.
	ErrInvalidQoS   = errors.New("mqtt: invalid qos")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
