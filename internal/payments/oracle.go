package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Oracle answers one question: has the transfer behind a payment token been
// confirmed on chain. The token is a transaction signature; partial chain
// states are collapsed into a plain yes/no.
type Oracle struct {
	rpcURL     string
	httpClient *http.Client
}

func NewOracle(rpcURL string) *Oracle {
	return &Oracle{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type signatureStatusResponse struct {
	Result struct {
		Value []*struct {
			ConfirmationStatus string      `json:"confirmationStatus"`
			Err                interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}

func (o *Oracle) Confirm(ctx context.Context, token string) (bool, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getSignatureStatuses",
		Params: []interface{}{
			[]string{token},
			map[string]bool{"searchTransactionHistory": true},
		},
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.rpcURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("payments: rpc request failed with status %d", resp.StatusCode)
	}

	var status signatureStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, err
	}

	if len(status.Result.Value) == 0 || status.Result.Value[0] == nil {
		return false, nil
	}
	entry := status.Result.Value[0]
	if entry.Err != nil {
		return false, nil
	}
	switch entry.ConfirmationStatus {
	case "confirmed", "finalized":
		return true, nil
	}
	return false, nil
}
