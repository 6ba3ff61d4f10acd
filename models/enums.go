package models

import "errors"

type TransactionKind string

const (
	TransactionKindIn         TransactionKind = "IN"
	TransactionKindOut        TransactionKind = "OUT"
	TransactionKindAdjustment TransactionKind = "ADJUSTMENT"
	TransactionKindSpoilage   TransactionKind = "SPOILAGE"
)

// abbreviation used in transaction codes
func (t TransactionKind) Abbr() string {
	switch t {
	case TransactionKindIn:
		return "IN"
	case TransactionKindOut:
		return "OUT"
	case TransactionKindAdjustment:
		return "ADJ"
	case TransactionKindSpoilage:
		return "SPL"
	}
	return ""
}

func ParseTransactionKind(s string) (TransactionKind, error) {
	switch s {
	case "IN":
		return TransactionKindIn, nil
	case "OUT":
		return TransactionKindOut, nil
	case "ADJUSTMENT":
		return TransactionKindAdjustment, nil
	case "SPOILAGE":
		return TransactionKindSpoilage, nil
	}
	return "", errors.New("invalid transaction kind")
}

type TransactionSourceType string

const (
	TransactionSourceOrder  TransactionSourceType = "ORDER"
	TransactionSourceSale   TransactionSourceType = "SALE"
	TransactionSourceManual TransactionSourceType = "MANUAL"
)

func ParseTransactionSourceType(s string) (TransactionSourceType, error) {
	switch s {
	case "ORDER":
		return TransactionSourceOrder, nil
	case "SALE":
		return TransactionSourceSale, nil
	case "MANUAL":
		return TransactionSourceManual, nil
	}
	return "", errors.New("invalid transaction source type")
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

type RequestTargetType string

const (
	RequestTargetOrder RequestTargetType = "ORDER"
	RequestTargetSale  RequestTargetType = "SALE"
)

func ParseRequestTargetType(s string) (RequestTargetType, error) {
	switch s {
	case "ORDER":
		return RequestTargetOrder, nil
	case "SALE":
		return RequestTargetSale, nil
	}
	return "", errors.New("invalid request target type")
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)
