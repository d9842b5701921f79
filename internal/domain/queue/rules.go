package queue

import (
	"strings"

	"github.com/shopspring/decimal"

	"tanktrace/internal/domain/genealogy"
	"tanktrace/internal/errs"
)

// Type is the material-queue subtype of a work center.
type Type string

const (
	TypeNone  Type = ""
	TypeRolls Type = "rolls"
	TypeFitUp Type = "fitup"
)

func (t Type) HasQueue() bool {
	return t == TypeRolls || t == TypeFitUp
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusConsumed Status = "consumed"
)

// Tracking is how a head vendor identifies its lots.
type Tracking string

const (
	TrackingLot  Tracking = "lot"
	TrackingHeat Tracking = "heat"
)

// Transaction actions written to the audit trail.
const (
	ActionAdded    = "Added"
	ActionAdvanced = "Advanced"
	ActionUpdated  = "Updated"
	ActionRemoved  = "Removed"
	ActionProgress = "Progress"
)

// Details are the operator-supplied fields of a queue item.
type Details struct {
	ProductID         *uint64
	MillVendorID      *uint64
	ProcessorVendorID *uint64
	HeadVendorID      *uint64
	HeatNumber        string
	CoilNumber        string
	LotNumber         string
	CardCode          string
	Description       string
	Quantity          decimal.Decimal
}

// Normalize trims text fields and applies subtype defaults.
func (d Details) Normalize(t Type) Details {
	d.HeatNumber = strings.TrimSpace(d.HeatNumber)
	d.CoilNumber = strings.TrimSpace(d.CoilNumber)
	d.LotNumber = strings.TrimSpace(d.LotNumber)
	d.CardCode = strings.TrimSpace(d.CardCode)
	d.Description = strings.TrimSpace(d.Description)
	if t == TypeFitUp && d.Quantity.IsZero() {
		d.Quantity = decimal.NewFromInt(1)
	}
	return d
}

// Validate checks the required fields of the subtype. headTracking is only
// consulted for fit-up queues and must come from the referenced head vendor.
func Validate(t Type, d Details, headTracking Tracking) error {
	switch t {
	case TypeRolls:
		if d.ProductID == nil {
			return errs.Validation("productId", "product is required for a rolls queue")
		}
		if d.MillVendorID == nil {
			return errs.Validation("millVendorId", "mill vendor is required for a rolls queue")
		}
		if d.ProcessorVendorID == nil {
			return errs.Validation("processorVendorId", "processor vendor is required for a rolls queue")
		}
		if d.HeatNumber == "" {
			return errs.Validation("heatNumber", "heat number is required for a rolls queue")
		}
		if d.CoilNumber == "" {
			return errs.Validation("coilNumber", "coil number is required for a rolls queue")
		}
	case TypeFitUp:
		if d.HeadVendorID == nil {
			return errs.Validation("headVendorId", "head vendor is required for a fit-up queue")
		}
		if d.CardCode == "" {
			return errs.Validation("cardCode", "card code is required for a fit-up queue")
		}
		switch headTracking {
		case TrackingLot:
			if d.LotNumber == "" {
				return errs.Validation("lotNumber", "lot number is required for lot-tracked head vendors")
			}
		case TrackingHeat:
			if d.HeatNumber == "" {
				return errs.Validation("heatNumber", "heat number is required for heat-tracked head vendors")
			}
		default:
			return errs.Validation("headVendorId", "head vendor has unknown tracking %q", headTracking)
		}
	default:
		return errs.Validation("workCenterId", "work center has no material queue")
	}

	if !d.Quantity.IsPositive() {
		return errs.Validation("quantity", "quantity must be positive")
	}
	return nil
}

// DrawIdentity returns the node kind and serial a drawn item materializes as.
func DrawIdentity(t Type, d Details, headTracking Tracking) (genealogy.NodeKind, string) {
	if t == TypeRolls {
		return genealogy.NodeCoil, d.CoilNumber
	}
	if headTracking == TrackingHeat {
		return genealogy.NodeHead, d.HeatNumber
	}
	return genealogy.NodeHead, d.LotNumber
}

// ApplyProgress adds amount to completed and reports whether the item is
// used up.
func ApplyProgress(quantity, completed, amount decimal.Decimal) (decimal.Decimal, bool, error) {
	if !amount.IsPositive() {
		return completed, false, errs.Validation("amount", "progress amount must be positive")
	}
	next := completed.Add(amount)
	return next, quantity.IsPositive() && next.GreaterThanOrEqual(quantity), nil
}

// Summary renders the one-line description used in audit rows.
func Summary(t Type, d Details) string {
	parts := make([]string, 0, 4)
	if d.CardCode != "" {
		parts = append(parts, "card "+d.CardCode)
	}
	if t == TypeRolls && d.CoilNumber != "" {
		parts = append(parts, "coil "+d.CoilNumber)
	}
	if d.LotNumber != "" {
		parts = append(parts, "lot "+d.LotNumber)
	}
	if d.HeatNumber != "" {
		parts = append(parts, "heat "+d.HeatNumber)
	}
	if d.Description != "" {
		parts = append(parts, d.Description)
	}
	parts = append(parts, "qty "+d.Quantity.String())
	return strings.Join(parts, ", ")
}
