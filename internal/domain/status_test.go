package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusCreated, StatusWaiting, true},
		{StatusCreated, StatusPaid, true},
		{StatusCreated, StatusReproved, true},
		{StatusCreated, StatusError, true},
		{StatusWaiting, StatusPaid, true},
		{StatusWaiting, StatusCreated, false},
		{StatusCreated, StatusCreated, false},
		{StatusPaid, StatusPaid, false},
		{StatusPaid, StatusReproved, false},
		{StatusReproved, StatusPaid, false},
		{StatusError, StatusPaid, false},
		{StatusExpired, StatusPaid, false},
		{StatusCancelled, StatusWaiting, false},
	}

	for _, tc := range tests {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestParseGatewayStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "paid", want: StatusPaid},
		{in: "reproved", want: StatusReproved},
		{in: "rejected", want: StatusError},
		{in: "PAID", wantErr: true},
		{in: "pending", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseGatewayStatus(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "paid", StatusPaid.String())
	assert.Equal(t, "status(42)", Status(42).String())
}

func TestNewPage(t *testing.T) {
	assert.Equal(t, Page{Number: 1, Size: DefaultPageSize}, NewPage(0, 0))
	assert.Equal(t, Page{Number: 3, Size: MaxPageSize}, NewPage(3, 500))
	assert.Equal(t, 40, NewPage(3, 20).Offset())
}

func TestStatus_JSON(t *testing.T) {
	b, err := json.Marshal(struct{ S Status }{StatusReproved})
	require.NoError(t, err)
	assert.JSONEq(t, `{"S":"reproved"}`, string(b))

	var out struct{ S Status }
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, StatusReproved, out.S)

	assert.Error(t, json.Unmarshal([]byte(`{"S":"refunded"}`), &out))
}
