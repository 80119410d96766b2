package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kentonium3/bake-tracker/internal/model"
)

// NegligibleQuantity is the dust threshold below which a lot counts as
// exhausted. Conversions round at 6 decimals, so residues smaller than this
// are floating dust from round-trips, not stock.
var NegligibleQuantity = decimal.RequireFromString("0.001")

// LotRepository handles purchase lots, the FIFO units of inventory. The *Tx
// methods run inside a caller-supplied transaction; lots are never deleted,
// only decremented.
type LotRepository interface {
	Create(ctx context.Context, tx *gorm.DB, lot *model.Lot) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Lot, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Lot, error)

	// FindLiveByFamily returns lots with non-negligible remaining quantity
	// across every active product of the family, oldest purchase first,
	// ties broken by lot id. This ordering IS the FIFO contract.
	FindLiveByFamily(ctx context.Context, tx *gorm.DB, family string) ([]model.Lot, error)

	// FindLiveByMaterial does the same across every product tagged with the
	// material. All contributors stock the material's base unit.
	FindLiveByMaterial(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) ([]model.Lot, error)

	// DecrementTx subtracts qty from a lot's remaining quantity with a
	// guard: the UPDATE matches only while enough remains, so concurrent
	// consumers cannot drive a lot negative.
	DecrementTx(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) error

	DB() *gorm.DB
}

type lotRepo struct{ db *gorm.DB }

func NewLotRepository(db *gorm.DB) LotRepository { return &lotRepo{db: db} }

// tx picks the transaction handle when one is supplied, otherwise the pool.
func (r *lotRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *lotRepo) Create(ctx context.Context, tx *gorm.DB, lot *model.Lot) error {
	return r.tx(tx).WithContext(ctx).Create(lot).Error
}

func (r *lotRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	var lot model.Lot
	err := r.db.WithContext(ctx).Preload("Product").First(&lot, "id = ?", id).Error
	return &lot, err
}

func (r *lotRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("purchase_date ASC, id ASC").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) FindLiveByFamily(ctx context.Context, tx *gorm.DB, family string) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.tx(tx).WithContext(ctx).
		Joins("JOIN products ON products.id = lots.product_id").
		Where("products.family = ? AND products.active = true", family).
		Where("lots.quantity_remaining > ?", NegligibleQuantity).
		Order("lots.purchase_date ASC, lots.id ASC").
		Preload("Product").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) FindLiveByMaterial(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.tx(tx).WithContext(ctx).
		Joins("JOIN products ON products.id = lots.product_id").
		Where("products.material_id = ? AND products.active = true", materialID).
		Where("lots.quantity_remaining > ?", NegligibleQuantity).
		Order("lots.purchase_date ASC, lots.id ASC").
		Preload("Product").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) DecrementTx(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) error {
	res := tx.Model(&model.Lot{}).
		Where("id = ? AND quantity_remaining >= ?", id, qty).
		Update("quantity_remaining", gorm.Expr("quantity_remaining - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("lot %s: concurrent consumption left less than %s remaining", id, qty)
	}
	return nil
}

func (r *lotRepo) DB() *gorm.DB { return r.db }
