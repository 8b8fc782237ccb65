package enums

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentRecordStatus mirrors the lifecycle of one external payment intent.
type PaymentRecordStatus string

const (
	PaymentRecordStatusPending   PaymentRecordStatus = "pending"
	PaymentRecordStatusSucceeded PaymentRecordStatus = "succeeded"
	PaymentRecordStatusFailed    PaymentRecordStatus = "failed"
	PaymentRecordStatusCanceled  PaymentRecordStatus = "canceled"
	PaymentRecordStatusRefunded  PaymentRecordStatus = "refunded"
)

func (s PaymentRecordStatus) Valid() bool {
	switch s {
	case PaymentRecordStatusPending, PaymentRecordStatusSucceeded,
		PaymentRecordStatusFailed, PaymentRecordStatusCanceled, PaymentRecordStatusRefunded:
		return true
	default:
		return false
	}
}
