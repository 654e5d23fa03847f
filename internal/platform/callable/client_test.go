package callable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Call(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode Code
		wantErr  bool
		wantData string
	}{
		{
			name:     "success with data",
			status:   http.StatusOK,
			body:     `{"success":true,"data":{"balance":150}}`,
			wantData: `{"balance":150}`,
		},
		{
			name:     "typed failure",
			status:   http.StatusOK,
			body:     `{"success":false,"error":{"code":"failed-precondition","message":"insufficient funds"}}`,
			wantCode: CodeFailedPrecondition,
		},
		{
			name:     "typed failure with error status",
			status:   http.StatusUnauthorized,
			body:     `{"success":false,"error":{"code":"unauthenticated","message":"no session"}}`,
			wantCode: CodeUnauthenticated,
		},
		{
			name:     "error status without envelope",
			status:   http.StatusInternalServerError,
			body:     `oops`,
			wantCode: CodeInternal,
		},
		{
			name:     "unsuccessful without error detail",
			status:   http.StatusOK,
			body:     `{"success":false}`,
			wantCode: CodeInternal,
		},
		{
			name:    "malformed success body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL}, srv.Client())
			res, err := c.Call(context.Background(), "processDeposit", map[string]any{"amount": 10})

			var ce *Error
			switch {
			case tt.wantCode != "":
				require.Error(t, err)
				require.True(t, errors.As(err, &ce), "expected *callable.Error, got %T", err)
				assert.Equal(t, tt.wantCode, ce.Code)
				assert.Equal(t, "processDeposit", ce.Endpoint)
			case tt.wantErr:
				require.Error(t, err)
				assert.False(t, errors.As(err, &ce))
			default:
				require.NoError(t, err)
				assert.JSONEq(t, tt.wantData, string(res.Data))
			}
		})
	}
}

func TestClient_Call_SendsJSONPayloadAndAuth(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotAuth, gotType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", APIKey: " secret "}, srv.Client())
	res, err := c.Call(context.Background(), "processWithdrawal", map[string]any{"accountId": "acc-1", "amount": 25.5})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/processWithdrawal", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "acc-1", gotBody["accountId"])
	assert.Equal(t, 25.5, gotBody["amount"])

	var out struct{ Balance float64 }
	assert.NoError(t, res.Decode(&out), "empty data decodes to zero value")
}

func TestClient_Call_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, nil)
	_, err := c.Call(context.Background(), "processDeposit", nil)

	require.Error(t, err)
	var ce *Error
	assert.False(t, errors.As(err, &ce))
}
