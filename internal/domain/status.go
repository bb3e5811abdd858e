package domain

import (
	"errors"
	"fmt"
)

// Status is an order (and service request) lifecycle state.
type Status string

const (
	StatusPendingPayment          Status = "Pending Payment"
	StatusPendingBankConfirmation Status = "Pending Bank Confirmation"
	StatusPaymentInitiated        Status = "Payment Initiated"
	StatusPaymentConfirmed        Status = "Payment Confirmed"
	StatusInProgress              Status = "In Progress"
	StatusAwaitingStock           Status = "Awaiting Stock"
	StatusReadyForDelivery        Status = "Ready for Delivery"
	StatusShipped                 Status = "Shipped"
	StatusDelivered               Status = "Delivered"
	StatusCompleted               Status = "Completed"
	StatusCancelled               Status = "Cancelled"
	StatusRefunded                Status = "Refunded"
	StatusFailed                  Status = "Failed"
	StatusInquiryReceived         Status = "Inquiry Received"

	// Localized aliases kept for orders edited from the Arabic back-office.
	StatusInPreparation Status = "قيد التجهيز"
	StatusFinished      Status = "منتهي"
)

// Statuses in back-office display order.
var Statuses = []Status{
	StatusPendingPayment,
	StatusPendingBankConfirmation,
	StatusPaymentInitiated,
	StatusPaymentConfirmed,
	StatusInProgress,
	StatusAwaitingStock,
	StatusReadyForDelivery,
	StatusShipped,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
	StatusRefunded,
	StatusFailed,
	StatusInquiryReceived,
	StatusInPreparation,
	StatusFinished,
}

var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError carries the rejected pair; it matches ErrInvalidTransition.
type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %q -> %q", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func ParseStatus(s string) (Status, bool) {
	for _, x := range Statuses {
		if string(x) == s {
			return x, true
		}
	}
	return "", false
}

// Canonical folds the localized aliases onto their English states.
func (s Status) Canonical() Status {
	switch s {
	case StatusInPreparation:
		return StatusInProgress
	case StatusFinished:
		return StatusCompleted
	default:
		return s
	}
}

// Fulfilling states trigger invoice generation and stock hand-out.
func (s Status) Fulfilling() bool {
	switch s.Canonical() {
	case StatusCompleted, StatusDelivered, StatusShipped:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	c := s.Canonical()
	return c == StatusCancelled || c == StatusRefunded
}

// transitions lists the legal targets per canonical state.
var transitions = map[Status][]Status{
	StatusInquiryReceived: {
		StatusPendingPayment, StatusInProgress, StatusCompleted, StatusCancelled,
	},
	StatusPendingPayment: {
		StatusPendingBankConfirmation, StatusPaymentInitiated, StatusPaymentConfirmed,
		StatusCancelled, StatusFailed,
	},
	// Payment is confirmed off-band, so the admin may fulfil straight away.
	StatusPendingBankConfirmation: {
		StatusPaymentConfirmed, StatusInProgress, StatusAwaitingStock, StatusReadyForDelivery,
		StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled, StatusFailed,
	},
	StatusPaymentInitiated: {
		StatusPaymentConfirmed, StatusPendingBankConfirmation, StatusInProgress, StatusAwaitingStock,
		StatusReadyForDelivery, StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled, StatusFailed,
	},
	StatusPaymentConfirmed: {
		StatusInProgress, StatusAwaitingStock, StatusReadyForDelivery, StatusShipped,
		StatusDelivered, StatusCompleted, StatusCancelled, StatusRefunded,
	},
	StatusInProgress: {
		StatusAwaitingStock, StatusReadyForDelivery, StatusShipped, StatusDelivered,
		StatusCompleted, StatusCancelled, StatusRefunded, StatusFailed,
	},
	StatusAwaitingStock: {
		StatusInProgress, StatusReadyForDelivery, StatusShipped, StatusDelivered,
		StatusCompleted, StatusCancelled, StatusRefunded,
	},
	StatusReadyForDelivery: {
		StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled, StatusRefunded,
	},
	StatusShipped: {
		StatusDelivered, StatusCompleted, StatusRefunded,
	},
	StatusDelivered: {
		StatusCompleted, StatusRefunded,
	},
	StatusCompleted: {
		StatusRefunded,
	},
	StatusFailed: {
		StatusPendingPayment,
	},
	StatusCancelled: {},
	StatusRefunded:  {},
}

// CanTransition reports whether from -> to is legal. Staying in the same
// (canonical) state is always legal so side effects can be re-applied.
func CanTransition(from, to Status) bool {
	f, t := from.Canonical(), to.Canonical()
	if f == t {
		return true
	}
	for _, s := range transitions[f] {
		if s == t {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError for illegal pairs.
func CheckTransition(from, to Status) error {
	if _, ok := ParseStatus(string(to)); !ok || !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// AllowedTargets lists the states reachable from s, including s itself.
func AllowedTargets(s Status) []Status {
	out := []Status{s}
	for _, x := range Statuses {
		if x != s && CanTransition(s, x) {
			out = append(out, x)
		}
	}
	return out
}

// PaymentStatusText renders a status into the payment line printed on invoices.
func PaymentStatusText(s Status) string {
	switch s.Canonical() {
	case StatusPendingPayment:
		return "بانتظار الدفع"
	case StatusPendingBankConfirmation:
		return "بانتظار تأكيد التحويل البنكي"
	case StatusPaymentInitiated:
		return "تم بدء الدفع"
	case StatusPaymentConfirmed, StatusInProgress, StatusAwaitingStock, StatusReadyForDelivery:
		return "مدفوع"
	case StatusShipped:
		return "مدفوع - تم الشحن"
	case StatusDelivered:
		return "مدفوع - تم التسليم"
	case StatusCompleted:
		return "مدفوع - مكتمل"
	case StatusRefunded:
		return "مسترد"
	case StatusCancelled:
		return "ملغي"
	case StatusFailed:
		return "فشل الدفع"
	default:
		return string(s)
	}
}
