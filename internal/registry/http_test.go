package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croplabs/farmd/internal/domain"
)

func TestHTTPClientCredit(t *testing.T) {
	t.Run("SendsDecimalAmountAndAPIKey", func(t *testing.T) {
		// ARRANGE
		var got creditRequest
		var gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/credit", r.URL.Path)
			gotKey = r.Header.Get("X-API-Key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		client := NewHTTPClient(server.URL, "secret", time.Second)

		// ACT: an amount far beyond uint64 travels as a decimal string
		amount := uint256.MustFromDecimal("340282366920938463463374607431768211456")
		err := client.Credit(context.Background(), "b7a3e2d1:0", "alice", amount)

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, "secret", gotKey)
		assert.Equal(t, "alice", got.Account)
		assert.Equal(t, "340282366920938463463374607431768211456", got.Amount)
		assert.Equal(t, "b7a3e2d1:0", got.IdempotencyKey)
	})

	t.Run("RemoteRejectionSurfacesTheError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(errorResponse{Error: "account frozen"})
		}))
		defer server.Close()
		client := NewHTTPClient(server.URL, "", time.Second)

		err := client.Credit(context.Background(), "key:1", "alice", uint256.NewInt(1))

		assert.ErrorIs(t, err, domain.ErrRemoteCallFailed)
		assert.Contains(t, err.Error(), "account frozen")
	})

	t.Run("NonJSONErrorBodyFallsBackToStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()
		client := NewHTTPClient(server.URL, "", time.Second)

		err := client.Credit(context.Background(), "key:1", "alice", uint256.NewInt(1))

		assert.ErrorIs(t, err, domain.ErrRemoteCallFailed)
		assert.Contains(t, err.Error(), "500")
	})
}

func TestHTTPClientDebitTransfer(t *testing.T) {
	t.Run("PostsToDebitTransfer", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		client := NewHTTPClient(server.URL, "", time.Second)

		require.NoError(t, client.DebitTransfer(context.Background(), "key:2", "alice", uint256.NewInt(25)))
		assert.Equal(t, "/debit-transfer", path)
	})
}

func TestHTTPClientTransfer(t *testing.T) {
	t.Run("SendsItemReference", func(t *testing.T) {
		var got transferItemRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transfer", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		client := NewHTTPClient(server.URL, "", time.Second)

		require.NoError(t, client.Transfer(context.Background(), "key:3", "alice", "hoe-1"))
		assert.Equal(t, "alice", got.Account)
		assert.Equal(t, "hoe-1", got.ItemID)
		assert.Equal(t, "key:3", got.IdempotencyKey)
	})
}

func TestHTTPClientTimeout(t *testing.T) {
	// A hung registry counts as a failed call and triggers compensation.
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)
	client := NewHTTPClient(server.URL, "", 50*time.Millisecond)

	err := client.Credit(context.Background(), "key:0", "alice", uint256.NewInt(1))

	assert.ErrorIs(t, err, domain.ErrRemoteCallFailed)
}

func TestClientsLookup(t *testing.T) {
	clients := &Clients{
		Tokens:      map[string]TokenClient{"CROP": NewHTTPClient("http://localhost", "", 0)},
		Collections: map[string]ItemClient{"tools": NewHTTPClient("http://localhost", "", 0)},
	}

	_, ok := clients.Token("CROP")
	assert.True(t, ok)
	_, ok = clients.Token("GOLD")
	assert.False(t, ok)
	_, ok = clients.Collection("tools")
	assert.True(t, ok)
	_, ok = clients.Collection("barns")
	assert.False(t, ok)
}
