package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tonex/tonex/internal/domain"
	"github.com/tonex/tonex/pkg/retrier"
)

const (
	// DefaultCoinGeckoURL simple-price endpoint of the public CoinGecko API.
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price"
	// DefaultAssetID CoinGecko id of the TON base asset.
	DefaultAssetID = "the-open-network"

	vsCurrency = "usd"
)

// CoinGeckoSource quotes the base pair from the CoinGecko simple-price API.
// The response shape is {"<asset-id>": {"usd": <decimal>}}.
type CoinGeckoSource struct {
	client  *http.Client
	baseURL string
	assetID string
	retrier *retrier.Retrier
}

// NewCoinGeckoSource creates a CoinGecko rate source. An empty baseURL or
// assetID falls back to the public endpoint for TON.
func NewCoinGeckoSource(client *http.Client, baseURL, assetID string) *CoinGeckoSource {
	if client == nil {
		client = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if assetID == "" {
		assetID = DefaultAssetID
	}
	return &CoinGeckoSource{
		client:  client,
		baseURL: baseURL,
		assetID: assetID,
		retrier: retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(200*time.Millisecond),
			retrier.WithMaxInterval(time.Second),
		),
	}
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

// FetchRate fetches the USD price of the base asset. Only the canonical
// TON-quoted-in-USDT pair is served; the engine inverts for the reverse
// direction.
func (s *CoinGeckoSource) FetchRate(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if pair.From != domain.TON || pair.To != domain.USDT {
		return decimal.Decimal{}, errors.Errorf("coingecko source quotes %s_%s only, got %s", domain.TON, domain.USDT, pair)
	}

	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return s.fetch(ctx)
	})
}

func (s *CoinGeckoSource) fetch(ctx context.Context) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("ids", s.assetID)
	params.Set("vs_currencies", vsCurrency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "build coingecko request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "coingecko request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("coingecko API returned status %d", resp.StatusCode)
	}

	// json.Number keeps the quote exact until it lands in a decimal
	var payload map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "decode coingecko response")
	}

	quote, ok := payload[s.assetID][vsCurrency]
	if !ok || quote == "" {
		return decimal.Decimal{}, fmt.Errorf("coingecko API returned no %s price for %s", vsCurrency, s.assetID)
	}

	return decimal.NewFromString(quote.String())
}
