package domain

import (
	"testing"

	"luka-points/pkg/apperror"

	"github.com/stretchr/testify/assert"
)

func TestAccountRef_Normalization(t *testing.T) {
	assert.Equal(t, AccountRef("alice@luka.app"), RefFromEmail("  Alice@Luka.App "))
	assert.Equal(t, AccountRef("42"), RefFromID(42))
	assert.Equal(t, AccountRef("acct-42"), NewAccountRef(" ACCT-42 "))
}

func TestAccountRef_NumericID(t *testing.T) {
	id, ok := RefFromID(42).NumericID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = RefFromEmail("bob@luka.app").NumericID()
	assert.False(t, ok)
}

func TestTransfer_Involves(t *testing.T) {
	tr := Transfer{Source: RefFromID(1), Destination: RefFromID(2)}
	assert.True(t, tr.Involves(RefFromID(1)))
	assert.True(t, tr.Involves(RefFromID(2)))
	assert.False(t, tr.Involves(RefFromID(3)))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleCompany.Valid())
	assert.True(t, RoleStudent.Valid())
	assert.False(t, Role("superuser").Valid())
}

func TestPaymentRequest_Validate(t *testing.T) {
	assert.NoError(t, PaymentRequest{Identifier: "acct-42", Amount: 150}.Validate())

	err := PaymentRequest{Amount: 150}.Validate()
	assert.True(t, apperror.HasCode(err, "QR_001"))

	err = PaymentRequest{Identifier: "acct-42"}.Validate()
	assert.True(t, apperror.HasCode(err, "QR_001"))

	err = PaymentRequest{Identifier: "acct-42", Amount: -5}.Validate()
	assert.True(t, apperror.HasCode(err, "QR_001"))
}
