package models

// ProductType distinguishes stock-tracked base products from composed
// products whose availability derives from a recipe.
type ProductType string

const (
	ProductTypeBase     ProductType = "B"
	ProductTypeComposed ProductType = "C"
)

func (t ProductType) IsValid() bool {
	switch t {
	case ProductTypeBase, ProductTypeComposed:
		return true
	}
	return false
}

type MovementKind string

const (
	MovementKindReceipt     MovementKind = "RECEIPT"
	MovementKindConsumption MovementKind = "CONSUMPTION"
	MovementKindWaste       MovementKind = "WASTE"
	MovementKindAdjustment  MovementKind = "ADJUSTMENT"
)

func (k MovementKind) IsValid() bool {
	switch k {
	case MovementKindReceipt, MovementKindConsumption, MovementKindWaste, MovementKindAdjustment:
		return true
	}
	return false
}

// IsOutgoing reports whether movements of this kind must carry a
// non-positive quantity. Adjustments can go either way.
func (k MovementKind) IsOutgoing() bool {
	return k == MovementKindConsumption || k == MovementKindWaste
}

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPending           PurchaseOrderStatus = "Pending"
	PurchaseOrderStatusApproved          PurchaseOrderStatus = "Approved"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "Partially Received"
	PurchaseOrderStatusReceived          PurchaseOrderStatus = "Received"
	PurchaseOrderStatusCancelled         PurchaseOrderStatus = "Cancelled"
)

func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusPending, PurchaseOrderStatusApproved,
		PurchaseOrderStatusPartiallyReceived, PurchaseOrderStatusReceived,
		PurchaseOrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the order can no longer change.
func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == PurchaseOrderStatusReceived || s == PurchaseOrderStatusCancelled
}

// CanReceive reports whether goods receipts may still be recorded
// against an order in this status. Pending orders accept receipts too;
// goods can arrive before the order is formally approved.
func (s PurchaseOrderStatus) CanReceive() bool {
	switch s {
	case PurchaseOrderStatusPending, PurchaseOrderStatusApproved, PurchaseOrderStatusPartiallyReceived:
		return true
	}
	return false
}

type SalesOrderStatus string

const (
	SalesOrderStatusOpen      SalesOrderStatus = "Open"
	SalesOrderStatusConfirmed SalesOrderStatus = "Confirmed"
	SalesOrderStatusCompleted SalesOrderStatus = "Completed"
	SalesOrderStatusCancelled SalesOrderStatus = "Cancelled"
)

func (s SalesOrderStatus) IsValid() bool {
	switch s {
	case SalesOrderStatusOpen, SalesOrderStatusConfirmed, SalesOrderStatusCompleted, SalesOrderStatusCancelled:
		return true
	}
	return false
}

func (s SalesOrderStatus) IsTerminal() bool {
	return s == SalesOrderStatusCompleted || s == SalesOrderStatusCancelled
}

type TableStatus string

const (
	TableStatusAvailable TableStatus = "Available"
	TableStatusOccupied  TableStatus = "Occupied"
	TableStatusReserved  TableStatus = "Reserved"
)

func (s TableStatus) IsValid() bool {
	switch s {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved:
		return true
	}
	return false
}

type BillStatus string

const (
	BillStatusOpen          BillStatus = "Open"
	BillStatusPartiallyPaid BillStatus = "Partially Paid"
	BillStatusPaid          BillStatus = "Paid"
	BillStatusVoid          BillStatus = "Void"
)

func (s BillStatus) IsValid() bool {
	switch s {
	case BillStatusOpen, BillStatusPartiallyPaid, BillStatusPaid, BillStatusVoid:
		return true
	}
	return false
}

type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "Cash"
	PaymentModeBankTransfer PaymentMode = "Bank Transfer"
	PaymentModeMobileWallet PaymentMode = "Mobile Wallet"
	PaymentModeCard         PaymentMode = "Card"
)

func (m PaymentMode) IsValid() bool {
	switch m {
	case PaymentModeCash, PaymentModeBankTransfer, PaymentModeMobileWallet, PaymentModeCard:
		return true
	}
	return false
}

type PaymentTerms string

const (
	PaymentTermsNet15        PaymentTerms = "Net15"
	PaymentTermsNet30        PaymentTerms = "Net30"
	PaymentTermsNet45        PaymentTerms = "Net45"
	PaymentTermsNet60        PaymentTerms = "Net60"
	PaymentTermsDueMonthEnd  PaymentTerms = "DueMonthEnd"
	PaymentTermsDueOnReceipt PaymentTerms = "DueOnReceipt"
	PaymentTermsCustom       PaymentTerms = "Custom"
)

func (t PaymentTerms) IsValid() bool {
	switch t {
	case PaymentTermsNet15, PaymentTermsNet30, PaymentTermsNet45, PaymentTermsNet60,
		PaymentTermsDueMonthEnd, PaymentTermsDueOnReceipt, PaymentTermsCustom:
		return true
	}
	return false
}

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleStaff Role = "Staff"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStaff:
		return true
	}
	return false
}

type WasteReason string

const (
	WasteReasonSpoilage    WasteReason = "Spoilage"
	WasteReasonBreakage    WasteReason = "Breakage"
	WasteReasonExpiry      WasteReason = "Expiry"
	WasteReasonPreparation WasteReason = "Preparation"
	WasteReasonOther       WasteReason = "Other"
)

func (r WasteReason) IsValid() bool {
	switch r {
	case WasteReasonSpoilage, WasteReasonBreakage, WasteReasonExpiry, WasteReasonPreparation, WasteReasonOther:
		return true
	}
	return false
}
