package model

// DeliveryStatus is the outcome of one notification attempt.
type DeliveryStatus int

const (
	// NotAttempted means the relay is not configured.
	NotAttempted DeliveryStatus = iota
	// Delivered means the relay accepted the message.
	Delivered
	// Failed means connect, auth or send failed.
	Failed
)

func (s DeliveryStatus) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return "not_attempted"
	}
}

// DeliveryResult is returned by notifiers instead of an error.
// Reason is set only when Status is Failed.
type DeliveryResult struct {
	Status DeliveryStatus
	Reason error
}

// Delivered reports whether the relay accepted the message.
func (r DeliveryResult) Delivered() bool {
	return r.Status == Delivered
}
