package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalUnmarshal(t *testing.T) {
	var body struct {
		Price   Optional[float64] `json:"price"`
		InStock Optional[bool]    `json:"inStock"`
		Notes   Optional[string]  `json:"notes"`
		Name    Optional[string]  `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price":0,"inStock":false,"notes":"","name":null}`), &body))

	price, ok := body.Price.Get()
	assert.True(t, ok)
	assert.Zero(t, price)

	inStock, ok := body.InStock.Get()
	assert.True(t, ok)
	assert.False(t, inStock)

	notes, ok := body.Notes.Get()
	assert.True(t, ok)
	assert.Empty(t, notes)

	assert.False(t, body.Name.IsSet(), "null is absent")
}

func TestOptionalMarshal(t *testing.T) {
	data, err := json.Marshal(struct {
		A Optional[int] `json:"a"`
		B Optional[int] `json:"b"`
	}{A: Some(3), B: Optional[int]{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3,"b":null}`, string(data))
}

func TestNewItemValidate(t *testing.T) {
	valid := NewItem{Name: "Chair", Description: "Wood chair", Category: "Furniture", Price: 5000}
	require.NoError(t, valid.Validate())

	err := NewItem{Price: -1, PaymentStatus: "refunded"}.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"name", "description", "category", "price", "paymentStatus"}, fields)
}

func TestItemPatchValidate(t *testing.T) {
	require.NoError(t, ItemPatch{}.Validate())
	require.NoError(t, ItemPatch{Notes: Some(""), Price: Some(0.0), InStock: Some(false)}.Validate())

	var verr *ValidationError
	require.ErrorAs(t, ItemPatch{Name: Some("")}.Validate(), &verr)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "name", verr.Errors[0].Field)
	assert.Equal(t, "name cannot be cleared; omit the field to keep the current value", verr.Errors[0].Message)
	assert.ErrorIs(t, ItemPatch{Description: Some("  ")}.Validate(), ErrValidation)
	assert.ErrorIs(t, ItemPatch{Price: Some(-0.5)}.Validate(), ErrValidation)
	assert.ErrorIs(t, ItemPatch{PaymentStatus: Some("")}.Validate(), ErrValidation)
}

func TestItemPatchIsEmpty(t *testing.T) {
	assert.True(t, ItemPatch{}.IsEmpty())
	assert.False(t, ItemPatch{InStock: Some(false)}.IsEmpty())
	assert.False(t, ItemPatch{DueDate: Some[*time.Time](nil)}.IsEmpty())
	assert.False(t, ItemPatch{MediaFiles: []MediaFile{{URL: "u"}}}.IsEmpty())
}

func TestItemDiff(t *testing.T) {
	old := Item{Name: "Chair", Price: 5000, PaymentStatus: PaymentUnpaid, Notes: "a"}
	updated := old
	updated.Price = 4500.5
	updated.PaymentStatus = PaymentPaid
	updated.InStock = true
	updated.Notes = "untracked"

	assert.Equal(t, []string{
		"price: 5000 → 4500.5",
		"inStock: false → true",
		"paymentStatus: unpaid → paid",
	}, old.Diff(updated))
}
