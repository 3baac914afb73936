package conflict

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isna13/BarManagerPro-sub003/internal/models"
)

func localItem(op models.Operation, payload string, updatedAt int64) *models.SyncQueueItem {
	return &models.SyncQueueItem{
		ID:         "item-1",
		EntityType: models.EntityProduct,
		EntityID:   "prod-1",
		Operation:  op,
		Payload:    json.RawMessage(payload),
		UpdatedAt:  updatedAt,
	}
}

func remoteEntity(payload string, updatedAt int64, active bool) *models.Entity {
	return &models.Entity{
		EntityType: models.EntityProduct,
		ID:         "prod-1",
		Payload:    json.RawMessage(payload),
		Version:    5,
		UpdatedAt:  updatedAt,
		IsActive:   active,
	}
}

func TestResolveWithoutRemoteStateResendsLocal(t *testing.T) {
	r := NewResolver()
	item := localItem(models.OperationUpdate, `{"price":100}`, 1000)

	res := r.Resolve(item, nil)
	assert.Equal(t, ActionResend, res.Action)
	assert.JSONEq(t, `{"price":100}`, string(res.MergedPayload))
}

func TestResolveRemoteDeleteBeatsLocalUpdate(t *testing.T) {
	r := NewResolver()
	item := localItem(models.OperationUpdate, `{"price":100}`, 9000)
	remote := remoteEntity(`{}`, 1000, false)

	// Delete wins even though the local edit is newer.
	res := r.Resolve(item, remote)
	assert.Equal(t, ActionDropPreserve, res.Action)
	assert.Equal(t, "conflict: remote delete wins", res.Reason)
}

func TestResolveDeleteAgainstDeletedCompletes(t *testing.T) {
	r := NewResolver()
	item := localItem(models.OperationDelete, `{}`, 1000)
	remote := remoteEntity(`{}`, 2000, false)

	res := r.Resolve(item, remote)
	assert.Equal(t, ActionComplete, res.Action)
}

func TestResolveLocalDeleteBeatsRemoteUpdate(t *testing.T) {
	r := NewResolver()
	item := localItem(models.OperationDelete, `{}`, 1000)
	remote := remoteEntity(`{"price":120}`, 9000, true)

	res := r.Resolve(item, remote)
	assert.Equal(t, ActionResend, res.Action)
}

func TestResolveMergesFieldsByTimestamp(t *testing.T) {
	r := NewResolver()

	// Local is newer: its value wins for shared fields, remote-only fields
	// survive the merge.
	item := localItem(models.OperationUpdate, `{"price":150}`, 2000)
	remote := remoteEntity(`{"price":100,"name":"Lager"}`, 1000, true)

	res := r.Resolve(item, remote)
	require.Equal(t, ActionResend, res.Action)

	var merged map[string]interface{}
	require.NoError(t, json.Unmarshal(res.MergedPayload, &merged))
	assert.Equal(t, float64(150), merged["price"])
	assert.Equal(t, "Lager", merged["name"])
}

func TestResolveRemoteNewerWinsSharedFields(t *testing.T) {
	r := NewResolver()

	item := localItem(models.OperationUpdate, `{"price":150,"note":"till edit"}`, 1000)
	remote := remoteEntity(`{"price":200,"name":"Lager"}`, 2000, true)

	res := r.Resolve(item, remote)
	require.Equal(t, ActionResend, res.Action)

	var merged map[string]interface{}
	require.NoError(t, json.Unmarshal(res.MergedPayload, &merged))
	assert.Equal(t, float64(200), merged["price"])
	assert.Equal(t, "Lager", merged["name"])
	assert.Equal(t, "till edit", merged["note"])
}

func TestResolveNonObjectPayloadFallsBackToDocumentLWW(t *testing.T) {
	r := NewResolver()

	item := localItem(models.OperationUpdate, `"opaque"`, 1000)
	remote := remoteEntity(`{"price":100}`, 2000, true)

	res := r.Resolve(item, remote)
	require.Equal(t, ActionResend, res.Action)
	assert.JSONEq(t, `{"price":100}`, string(res.MergedPayload))
}
