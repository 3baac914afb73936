// Package deps declares the static entity dependency graph used to order
// outbound sync operations. A child entity's remote row cannot be created
// before its parents exist, so queue priority is derived from the entity's
// topological rank here.
package deps

import "github.com/Isna13/BarManagerPro-sub003/internal/models"

// ranks is the flattened topological order of the entity DAG:
//
//	branch, category, supplier
//	  -> customer, product
//	    -> inventory_item
//	      -> sale, purchase, cash_box, debt
//	        -> sale_item, purchase_item, payment, debt_payment
var ranks = map[models.EntityType]int{
	models.EntityBranch:   0,
	models.EntityCategory: 0,
	models.EntitySupplier: 0,

	models.EntityCustomer: 1,
	models.EntityProduct:  1,

	models.EntityInventoryItem: 2,

	models.EntitySale:     3,
	models.EntityPurchase: 3,
	models.EntityCashBox:  3,
	models.EntityDebt:     3,

	models.EntitySaleItem:     4,
	models.EntityPurchaseItem: 4,
	models.EntityPayment:      4,
	models.EntityDebtPayment:  4,
}

// MaxRank is the highest rank assigned to a known entity type.
const MaxRank = 4

// Rank returns the topological rank of an entity type. Types the device
// does not know yet (a newer server vocabulary) sort after everything
// known instead of wedging the queue.
func Rank(t models.EntityType) int {
	if r, ok := ranks[t]; ok {
		return r
	}
	return MaxRank + 1
}

// Known reports whether the entity type participates in the DAG.
func Known(t models.EntityType) bool {
	_, ok := ranks[t]
	return ok
}
