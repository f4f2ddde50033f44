package rate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tonex/tonex/internal/domain"
)

func TestCoinGeckoFetchRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, DefaultAssetID, r.URL.Query().Get("ids"))
		require.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		fmt.Fprintf(w, `{"%s":{"usd":2.53}}`, DefaultAssetID)
	}))
	defer server.Close()

	source := NewCoinGeckoSource(server.Client(), server.URL, "")

	rate, err := source.FetchRate(context.Background(), tonUsdt)
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("2.53")))
}

func TestCoinGeckoFetchRateMissingQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	source := NewCoinGeckoSource(server.Client(), server.URL, "")

	_, err := source.FetchRate(context.Background(), tonUsdt)
	require.Error(t, err)
}

func TestCoinGeckoFetchRateUnsupportedPair(t *testing.T) {
	source := NewCoinGeckoSource(nil, "", "")

	_, err := source.FetchRate(context.Background(), domain.Pair{From: domain.USDT, To: domain.TON})
	require.Error(t, err)
}
