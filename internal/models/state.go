package models

// RegistrationState is the lifecycle of a registration, one variant per event
// type. Combinations such as a cancelled-but-paid order cannot be represented.
type RegistrationState interface {
	// Admissible reports whether the holder may be checked in
	Admissible() bool
	isRegistrationState()
}

// NormalRegistrationState is the state of a registration for a normal event
type NormalRegistrationState struct {
	Status RegistrationStatus
}

func (s NormalRegistrationState) Admissible() bool {
	return s.Status != RegistrationCancelled
}

func (NormalRegistrationState) isRegistrationState() {}

// MerchandiseOrderState is the state of an order for a merchandise event
type MerchandiseOrderState struct {
	Status  RegistrationStatus
	Payment PaymentStatus
}

func (s MerchandiseOrderState) Admissible() bool {
	return s.Payment == PaymentSuccessful
}

func (MerchandiseOrderState) isRegistrationState() {}

// DecodeState builds the state variant for a stored registration of an event
// of the given type, rejecting combinations the domain never produces.
func DecodeState(t EventType, status RegistrationStatus, payment *PaymentStatus) (RegistrationState, error) {
	switch status {
	case RegistrationUpcoming, RegistrationCompleted, RegistrationCancelled:
	default:
		return nil, Fail(ErrValidationFailed, "unknown registration status %q", status)
	}

	switch t {
	case EventTypeNormal:
		if payment != nil {
			return nil, Fail(ErrValidationFailed, "registration for a normal event cannot carry a payment status")
		}
		return NormalRegistrationState{Status: status}, nil

	case EventTypeMerchandise:
		if payment == nil {
			return nil, Fail(ErrValidationFailed, "order is missing its payment status")
		}
		switch *payment {
		case PaymentAwaiting, PaymentPendingApproval, PaymentRejected, PaymentSuccessful:
		default:
			return nil, Fail(ErrValidationFailed, "unknown payment status %q", *payment)
		}
		if status == RegistrationCancelled {
			return nil, Fail(ErrValidationFailed, "merchandise orders cannot be cancelled")
		}
		return MerchandiseOrderState{Status: status, Payment: *payment}, nil
	}
	return nil, Fail(ErrValidationFailed, "unknown event type %q", t)
}

// State returns the state variant of r for an event of type t
func (r *Registration) State(t EventType) (RegistrationState, error) {
	return DecodeState(t, r.Status, r.PaymentStatus)
}
