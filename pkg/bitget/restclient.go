package bitget

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetSpotSymbols fetches all spot instruments with their trading status.
func (c *RESTClient) GetSpotSymbols(ctx context.Context) ([]SymbolInfo, error) {
	endpoint := c.baseURL + "/api/v2/spot/public/symbols"

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bitget error: status=%d body=%s", resp.StatusCode, body)
	}

	var rawResp RESTResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rawResp.Code != restSuccessCode {
		return nil, fmt.Errorf("bitget error: code=%s msg=%s", rawResp.Code, rawResp.Msg)
	}

	var symbols []SymbolInfo
	if err := json.Unmarshal(rawResp.Data, &symbols); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return symbols, nil
}

// FilterOnline returns the wanted symbols that the exchange lists as online,
// preserving the order of wanted.
func FilterOnline(wanted []string, listed []SymbolInfo) (online, rejected []string) {
	status := make(map[string]string, len(listed))
	for _, s := range listed {
		status[s.Symbol] = s.Status
	}
	for _, symbol := range wanted {
		if status[symbol] == symbolStatusOnline {
			online = append(online, symbol)
		} else {
			rejected = append(rejected, symbol)
		}
	}
	return online, rejected
}
