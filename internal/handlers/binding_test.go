package handlers

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/creditiq/creditiq-api/internal/services"
)

func newJSONContext(t *testing.T, body string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/loans", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestBindNestedOrFlat(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantIncome float64
	}{
		{
			name:       "nested payload",
			body:       `{"application": {"income": 800000, "loan_amount": 200000, "tenure": 36, "employment_type": "SALARIED", "credit_score": 720, "age": 34}}`,
			wantIncome: 800000,
		},
		{
			name:       "flat payload",
			body:       `{"income": 500000, "loan_amount": 100000, "tenure": 24, "employment_type": "BUSINESS", "credit_score": 680, "age": 29}`,
			wantIncome: 500000,
		},
		{
			name:       "nested key takes precedence over flat fields",
			body:       `{"income": 1, "application": {"income": 800000, "loan_amount": 200000, "tenure": 36, "employment_type": "SALARIED", "credit_score": 720, "age": 34}}`,
			wantIncome: 800000,
		},
		{
			name:    "malformed json",
			body:    `{"application": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newJSONContext(t, tt.body)

			var input services.CreateLoanInput
			err := BindNestedOrFlat(c, "application", &input)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantIncome, input.Income)
		})
	}
}

func TestValidateStruct(t *testing.T) {
	valid := services.CreateLoanInput{
		Income:         800000,
		LoanAmount:     200000,
		Tenure:         36,
		EmploymentType: "SALARIED",
		CreditScore:    720,
		Age:            34,
	}
	assert.NoError(t, validateStruct(&valid))

	invalid := valid
	invalid.EmploymentType = "FREELANCE"
	assert.Error(t, validateStruct(&invalid))

	invalid = valid
	invalid.CreditScore = 900
	assert.Error(t, validateStruct(&invalid))
}
