package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutForm struct {
	UserID        string `validate:"required,uuid"`
	PaymentMethod string `validate:"required,oneof=card cash_on_delivery"`
	Quantity      int    `validate:"gte=1,lte=100"`
	CouponCode    string `validate:"omitempty,min=3,max=32"`
}

func validForm() checkoutForm {
	return checkoutForm{
		UserID:        "550e8400-e29b-41d4-a716-446655440000",
		PaymentMethod: "card",
		Quantity:      2,
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Passes(t *testing.T) {
	assert.NoError(t, Validate(validForm()))
}

func TestValidate_CollectsEveryFailure(t *testing.T) {
	form := checkoutForm{UserID: "not-a-uuid", PaymentMethod: "bitcoin", Quantity: 0}
	err := Validate(form)
	require.Error(t, err)

	fields := fieldsOf(t, err)
	assert.Equal(t, "must be a valid UUID", fields["UserID"])
	assert.Contains(t, fields["PaymentMethod"], "one of")
	assert.Contains(t, fields["Quantity"], "greater than or equal to 1")
}

func TestValidate_RequiredAndBounds(t *testing.T) {
	form := validForm()
	form.UserID = ""
	form.Quantity = 500
	form.CouponCode = "ab"
	err := Validate(form)
	require.Error(t, err)

	fields := fieldsOf(t, err)
	assert.Equal(t, "is required", fields["UserID"])
	assert.Contains(t, fields["Quantity"], "less than or equal to 100")
	assert.Contains(t, fields["CouponCode"], "at least 3")
}

func TestValidationError_MessageNamesFields(t *testing.T) {
	form := validForm()
	form.PaymentMethod = ""
	err := Validate(form)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'PaymentMethod'")
	assert.Contains(t, err.Error(), "is required")
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"UserID":"550e8400-e29b-41d4-a716-446655440000","PaymentMethod":"cash_on_delivery","Quantity":3}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))

	var form checkoutForm
	require.NoError(t, DecodeAndValidate(req, &form))
	assert.Equal(t, 3, form.Quantity)
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader("{broken"))

	var form checkoutForm
	err := DecodeAndValidate(req, &form)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_TagFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/checkout",
		strings.NewReader(`{"UserID":"","PaymentMethod":"card","Quantity":1}`))

	var form checkoutForm
	err := DecodeAndValidate(req, &form)
	require.Error(t, err)

	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
