package deps

import (
	"testing"

	"github.com/Isna13/BarManagerPro-sub003/internal/models"
)

func TestRankFollowsEntityGraph(t *testing.T) {
	cases := []struct {
		entityType models.EntityType
		want       int
	}{
		{models.EntityBranch, 0},
		{models.EntityCategory, 0},
		{models.EntitySupplier, 0},
		{models.EntityCustomer, 1},
		{models.EntityProduct, 1},
		{models.EntityInventoryItem, 2},
		{models.EntitySale, 3},
		{models.EntityPurchase, 3},
		{models.EntityCashBox, 3},
		{models.EntityDebt, 3},
		{models.EntitySaleItem, 4},
		{models.EntityPurchaseItem, 4},
		{models.EntityPayment, 4},
		{models.EntityDebtPayment, 4},
	}
	for _, c := range cases {
		if got := Rank(c.entityType); got != c.want {
			t.Errorf("Rank(%s) = %d, want %d", c.entityType, got, c.want)
		}
	}
}

func TestChildrenRankAfterParents(t *testing.T) {
	pairs := [][2]models.EntityType{
		{models.EntityCategory, models.EntityProduct},
		{models.EntityProduct, models.EntityInventoryItem},
		{models.EntityCustomer, models.EntitySale},
		{models.EntitySale, models.EntitySaleItem},
		{models.EntityDebt, models.EntityDebtPayment},
	}
	for _, pair := range pairs {
		if Rank(pair[0]) >= Rank(pair[1]) {
			t.Errorf("%s (rank %d) must sort before %s (rank %d)",
				pair[0], Rank(pair[0]), pair[1], Rank(pair[1]))
		}
	}
}

func TestUnknownTypesSortLast(t *testing.T) {
	unknown := models.EntityType("loyalty_card")
	if Known(unknown) {
		t.Fatalf("expected %q to be unknown", unknown)
	}
	if got := Rank(unknown); got != MaxRank+1 {
		t.Errorf("Rank(unknown) = %d, want %d", got, MaxRank+1)
	}
}
