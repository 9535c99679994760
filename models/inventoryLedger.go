package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/config"
	"bitbucket.org/mmdatafocus/resto_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovementReferenceType string

const (
	MovementReferenceOpeningStock   MovementReferenceType = "OS"
	MovementReferenceInventoryEntry MovementReferenceType = "GR"
	MovementReferenceSalesOrder     MovementReferenceType = "SO"
	MovementReferenceWasteEntry     MovementReferenceType = "WST"
	MovementReferenceAdjustment     MovementReferenceType = "ADJ"
)

// InventoryMovement is one append-only ledger row: a signed stock delta
// for a base product with a causal document reference. Rows are never
// updated or deleted; corrections are new ADJUSTMENT movements.
type InventoryMovement struct {
	ID                string                `gorm:"size:36;primary_key" json:"id"` // uuid
	BusinessId        string                `gorm:"index:idx_inv_move_biz_prod_date,priority:1;not null" json:"business_id"`
	ProductId         int                   `gorm:"index:idx_inv_move_biz_prod_date,priority:2;not null" json:"product_id"`
	Kind              MovementKind          `gorm:"type:enum('RECEIPT','CONSUMPTION','WASTE','ADJUSTMENT');not null" json:"kind"`
	Qty               decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"qty"` // signed delta
	ReferenceType     MovementReferenceType `gorm:"size:10;not null" json:"reference_type"`
	ReferenceId       int                   `gorm:"index;not null" json:"reference_id"`
	ReferenceDetailId int                   `gorm:"index" json:"reference_detail_id"`
	SequenceNo        int64                 `gorm:"index;not null" json:"sequence_no"`
	EffectiveDate     time.Time             `gorm:"index:idx_inv_move_biz_prod_date,priority:3;not null" json:"effective_date"`
	Remark            string                `gorm:"size:255" json:"remark"`
	CorrelationId     string                `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt         time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

type NewInventoryMovement struct {
	ProductId         int                   `json:"product_id" binding:"required"`
	Kind              MovementKind          `json:"kind" binding:"required"`
	Qty               decimal.Decimal       `json:"qty" binding:"required"` // signed delta
	ReferenceType     MovementReferenceType `json:"reference_type"`
	ReferenceId       int                   `json:"reference_id"`
	ReferenceDetailId int                   `json:"reference_detail_id"`
	EffectiveDate     time.Time             `json:"effective_date"`
	Remark            string                `json:"remark"`
}

// validateMovementSign rejects deltas whose sign contradicts the kind.
// RECEIPT must add stock, CONSUMPTION and WASTE must remove it,
// ADJUSTMENT goes either way but never zero.
func validateMovementSign(kind MovementKind, qty decimal.Decimal) error {
	if !kind.IsValid() {
		return errors.New("invalid movement kind")
	}
	if qty.IsZero() {
		return errors.New("movement qty cannot be zero")
	}
	if kind == MovementKindReceipt && qty.IsNegative() {
		return errors.New("receipt movement must carry a positive qty")
	}
	if kind.IsOutgoing() && qty.IsPositive() {
		return errors.New(string(kind) + " movement must carry a negative qty")
	}
	return nil
}

func (m *InventoryMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.EffectiveDate.IsZero() {
		m.EffectiveDate = time.Now().UTC()
	}
	return validateMovementSign(m.Kind, m.Qty)
}

// the ledger is append-only
func (m *InventoryMovement) BeforeUpdate(tx *gorm.DB) error {
	return NewDomainError(ErrKindImmutableRecord, "inventory movements cannot be updated")
}

func (m *InventoryMovement) BeforeDelete(tx *gorm.DB) error {
	return NewDomainError(ErrKindImmutableRecord, "inventory movements cannot be deleted")
}

/* in-process ledger */

// Ledger holds movement sequences per product with per-product mutex
// serialization: appends and balance reads for one product never race,
// while different products proceed fully in parallel.
type Ledger struct {
	mu       sync.Mutex
	products map[int]*productLedger
}

type productLedger struct {
	mu        sync.Mutex
	movements []InventoryMovement
}

func NewLedger() *Ledger {
	return &Ledger{products: make(map[int]*productLedger)}
}

func (l *Ledger) productLedger(productId int) *productLedger {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.products[productId]
	if !ok {
		pl = &productLedger{}
		l.products[productId] = pl
	}
	return pl
}

// balance is a fold over the ordered movement history.
func (pl *productLedger) balance(asOf *time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, m := range pl.movements {
		if asOf != nil && m.EffectiveDate.After(*asOf) {
			continue
		}
		total = total.Add(m.Qty)
	}
	return total
}

// Append validates the movement, rejects anything that would drive the
// product balance negative, and returns the new running balance. A
// rejected append leaves the ledger untouched.
func (l *Ledger) Append(m InventoryMovement) (decimal.Decimal, error) {
	if err := validateMovementSign(m.Kind, m.Qty); err != nil {
		return decimal.Zero, err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.EffectiveDate.IsZero() {
		m.EffectiveDate = time.Now().UTC()
	}

	pl := l.productLedger(m.ProductId)
	pl.mu.Lock()
	defer pl.mu.Unlock()

	current := pl.balance(nil)
	next := current.Add(m.Qty)
	if next.IsNegative() {
		return current, NewProductError(ErrKindInsufficientStock, m.ProductId,
			"movement would drive balance below zero")
	}
	if m.SequenceNo == 0 {
		m.SequenceNo = int64(len(pl.movements)) + 1
	}
	pl.movements = append(pl.movements, m)
	return next, nil
}

// BalanceOf folds the product's movements, optionally up to a point in time.
func (l *Ledger) BalanceOf(productId int, asOf ...time.Time) decimal.Decimal {
	pl := l.productLedger(productId)
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if len(asOf) > 0 {
		return pl.balance(&asOf[0])
	}
	return pl.balance(nil)
}

func (l *Ledger) MovementsOf(productId int) []InventoryMovement {
	pl := l.productLedger(productId)
	pl.mu.Lock()
	defer pl.mu.Unlock()
	out := make([]InventoryMovement, len(pl.movements))
	copy(out, pl.movements)
	return out
}

// Replay rebuilds the ledger from scratch out of an ordered movement
// sequence. Given the same input it always produces the same balances.
func (l *Ledger) Replay(movements []InventoryMovement) error {
	fresh := NewLedger()
	ordered := make([]InventoryMovement, len(movements))
	copy(ordered, movements)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ProductId != ordered[j].ProductId {
			return ordered[i].ProductId < ordered[j].ProductId
		}
		return ordered[i].SequenceNo < ordered[j].SequenceNo
	})
	for _, m := range ordered {
		if _, err := fresh.Append(m); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.products = fresh.products
	return nil
}

/* persisted ledger */

// appendMovementTx writes one movement inside the caller's transaction
// and maintains the derived stores: stock_summaries and the product's
// own stock column. Outgoing movements are checked against the
// uncommitted balance first, so a rejection rolls back cleanly.
func appendMovementTx(tx *gorm.DB, ctx context.Context, businessId string, input *NewInventoryMovement) (*InventoryMovement, error) {
	if err := validateMovementSign(input.Kind, input.Qty); err != nil {
		return nil, err
	}

	var product Product
	if err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, input.ProductId).
		First(&product).Error; err != nil {
		return nil, NewProductError(ErrKindDanglingReference, input.ProductId, "product not found")
	}
	if product.Type != ProductTypeBase {
		return nil, errors.New("only base products carry stock movements")
	}

	if input.Qty.IsNegative() {
		if err := ValidateProductStock(tx, ctx, businessId, input.ProductId, input.Qty.Neg()); err != nil {
			return nil, err
		}
	}

	seqNo, err := utils.GetSequence[InventoryMovement](ctx, businessId)
	if err != nil {
		return nil, err
	}

	movement := InventoryMovement{
		ID:                uuid.NewString(),
		BusinessId:        businessId,
		ProductId:         input.ProductId,
		Kind:              input.Kind,
		Qty:               input.Qty,
		ReferenceType:     input.ReferenceType,
		ReferenceId:       input.ReferenceId,
		ReferenceDetailId: input.ReferenceDetailId,
		SequenceNo:        seqNo,
		EffectiveDate:     input.EffectiveDate,
		Remark:            input.Remark,
		CorrelationId:     correlationIdFromContextOrNew(ctx),
	}
	if movement.EffectiveDate.IsZero() {
		movement.EffectiveDate = time.Now().UTC()
	}

	if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
		return nil, err
	}

	if err := applyMovementToSummary(tx, ctx, businessId, &movement); err != nil {
		return nil, err
	}

	// base product stock mirrors the summary
	if err := tx.WithContext(ctx).Exec(
		"UPDATE products SET stock = stock + ? WHERE business_id = ? AND id = ?",
		movement.Qty, businessId, movement.ProductId).Error; err != nil {
		return nil, err
	}

	return &movement, nil
}

// AppendMovement is the standalone entry point: product lock, own
// transaction, summary upkeep.
func AppendMovement(ctx context.Context, input *NewInventoryMovement) (*InventoryMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	lock, err := utils.ProductLock(ctx, businessId, input.ProductId, "inventoryLedger", "AppendMovement")
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	db := config.GetDB()
	tx := db.Begin()
	movement, err := appendMovementTx(tx, ctx, businessId, input)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return movement, nil
}

// StockSummary is the denormalized per-product balance. Derived data;
// the movement table is the ledger of record and RebuildStockSummaries
// can always reproduce this from it.
type StockSummary struct {
	BusinessId     string          `gorm:"primaryKey;not null" json:"business_id"`
	ProductId      int             `gorm:"primaryKey;not null" json:"product_id"`
	ReceivedQty    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"received_qty"`
	ConsumedQty    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"consumed_qty"`
	WastedQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"wasted_qty"`
	AdjustedQtyIn  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"adjusted_qty_in"`
	AdjustedQtyOut decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"adjusted_qty_out"`
	CurrentQty     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_qty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func firstOrCreateStockSummary(tx *gorm.DB, businessId string, productId int) (*StockSummary, error) {
	stockSummary := StockSummary{
		BusinessId: businessId,
		ProductId:  productId,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		FirstOrCreate(&stockSummary)
	if result.Error != nil {
		// A concurrent transaction may have inserted the row between the
		// locked read and the create; re-read it under the lock.
		if isDuplicateKeyErr(result.Error) {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("business_id = ? AND product_id = ?", businessId, productId).
				First(&stockSummary).Error; err != nil {
				return nil, err
			}
			return &stockSummary, nil
		}
		return nil, result.Error
	}
	return &stockSummary, nil
}

func applyMovementToSummary(tx *gorm.DB, ctx context.Context, businessId string, m *InventoryMovement) error {
	if _, err := firstOrCreateStockSummary(tx, businessId, m.ProductId); err != nil {
		return err
	}

	var column string
	switch m.Kind {
	case MovementKindReceipt:
		column = "received_qty"
	case MovementKindConsumption:
		column = "consumed_qty"
	case MovementKindWaste:
		column = "wasted_qty"
	case MovementKindAdjustment:
		if m.Qty.IsPositive() {
			column = "adjusted_qty_in"
		} else {
			column = "adjusted_qty_out"
		}
	default:
		return errors.New("invalid movement kind")
	}

	magnitude := m.Qty.Abs()
	return tx.WithContext(ctx).Exec(
		"UPDATE stock_summaries SET "+column+" = "+column+" + ?, current_qty = current_qty + ? WHERE business_id = ? AND product_id = ?",
		magnitude, m.Qty, businessId, m.ProductId).Error
}

// GetMovements lists ledger rows, newest first.
// GetMovements lists ledger rows newest-first. from/to are local
// datetimes in the business timezone and bound the effective date.
func GetMovements(ctx context.Context, productId *int, kind *MovementKind, from *string, to *string, limit int) ([]*InventoryMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	if kind != nil && *kind != "" {
		dbCtx = dbCtx.Where("kind = ?", *kind)
	}
	if from != nil && *from != "" {
		fromDate, err := ParseDateString(*from, businessTimezone(ctx, businessId))
		if err != nil {
			return nil, fmt.Errorf("invalid from date: %w", err)
		}
		dbCtx = dbCtx.Where("effective_date >= ?", fromDate)
	}
	if to != nil && *to != "" {
		toDate, err := ParseDateString(*to, businessTimezone(ctx, businessId))
		if err != nil {
			return nil, fmt.Errorf("invalid to date: %w", err)
		}
		dbCtx = dbCtx.Where("effective_date <= ?", toDate)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var results []*InventoryMovement
	if err := dbCtx.Order("sequence_no DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// BalanceOfProduct folds the persisted movements for one product.
func BalanceOfProduct(ctx context.Context, productId int) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, errors.New("business id is required")
	}

	db := config.GetDB()
	var balance decimal.Decimal
	if err := db.WithContext(ctx).Model(&InventoryMovement{}).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Select("COALESCE(SUM(qty), 0)").Scan(&balance).Error; err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// RebuildStockSummaries replays the whole persisted ledger of one
// business through an in-process Ledger and writes the balances back
// into stock_summaries and products.stock. Recovery path; see
// cmd/ledger-rebuild.
func RebuildStockSummaries(ctx context.Context, businessId string) (int, error) {
	db := config.GetDB()

	var movements []InventoryMovement
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("product_id, sequence_no").
		Find(&movements).Error; err != nil {
		return 0, err
	}

	ledger := NewLedger()
	if err := ledger.Replay(movements); err != nil {
		return 0, err
	}

	totals := make(map[int]*StockSummary)
	for _, m := range movements {
		summary, ok := totals[m.ProductId]
		if !ok {
			summary = &StockSummary{BusinessId: businessId, ProductId: m.ProductId}
			totals[m.ProductId] = summary
		}
		magnitude := m.Qty.Abs()
		switch m.Kind {
		case MovementKindReceipt:
			summary.ReceivedQty = summary.ReceivedQty.Add(magnitude)
		case MovementKindConsumption:
			summary.ConsumedQty = summary.ConsumedQty.Add(magnitude)
		case MovementKindWaste:
			summary.WastedQty = summary.WastedQty.Add(magnitude)
		case MovementKindAdjustment:
			if m.Qty.IsPositive() {
				summary.AdjustedQtyIn = summary.AdjustedQtyIn.Add(magnitude)
			} else {
				summary.AdjustedQtyOut = summary.AdjustedQtyOut.Add(magnitude)
			}
		}
	}

	tx := db.Begin()
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		Delete(&StockSummary{}).Error; err != nil {
		tx.Rollback()
		return 0, err
	}

	for productId, summary := range totals {
		summary.CurrentQty = ledger.BalanceOf(productId)
		if err := tx.WithContext(ctx).Create(summary).Error; err != nil {
			tx.Rollback()
			return 0, err
		}
		if err := tx.WithContext(ctx).Exec(
			"UPDATE products SET stock = ? WHERE business_id = ? AND id = ?",
			summary.CurrentQty, businessId, productId).Error; err != nil {
			tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return len(totals), nil
}
