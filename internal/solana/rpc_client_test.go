package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newRPCServer returns a JSON-RPC test server answering with result(req).
func newRPCServer(t *testing.T, result func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result(req),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	configs := make(chan map[string]interface{}, 1)

	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", req.Method)
		}
		params := req.Params.([]interface{})
		configs <- params[1].(map[string]interface{})

		return map[string]interface{}{
			"slot":      int64(123456),
			"blockTime": int64(1700000000),
			"meta": map[string]interface{}{
				"err":         nil,
				"logMessages": []string{"Program log: Instruction: InitializeCustomizablePermissionlessLbPair"},
			},
			"transaction": map[string]interface{}{
				"message": map[string]interface{}{
					"accountKeys": []string{"addr1", "addr2"},
				},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "testsig123")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}

	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}

	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}

	if tx.BlockTime != 1700000000 {
		t.Errorf("expected blockTime 1700000000, got %d", tx.BlockTime)
	}

	if len(tx.AccountKeys()) != 2 {
		t.Errorf("expected 2 account keys, got %d", len(tx.AccountKeys()))
	}

	gotConfig := <-configs
	if v, ok := gotConfig["maxSupportedTransactionVersion"].(float64); !ok || v != 0 {
		t.Errorf("expected maxSupportedTransactionVersion 0, got %v", gotConfig["maxSupportedTransactionVersion"])
	}

	if gotConfig["commitment"] != CommitmentFinalized {
		t.Errorf("expected finalized commitment, got %v", gotConfig["commitment"])
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := newRPCServer(t, func(rpcRequest) interface{} { return nil })
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}

	if tx != nil {
		t.Errorf("expected nil for not found, got %+v", tx)
	}
}

func TestHTTPClient_GetTransaction_NoMessage(t *testing.T) {
	server := newRPCServer(t, func(rpcRequest) interface{} {
		return map[string]interface{}{"slot": int64(5)}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "sig")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}

	if tx.AccountKeys() != nil {
		t.Errorf("expected nil account keys, got %v", tx.AccountKeys())
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{"owner": "owner1", "data": []string{"", "base64"}},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	info, err := client.GetAccountInfo(context.Background(), "pubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info.Owner != "owner1" {
		t.Errorf("expected owner1, got %s", info.Owner)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RetriesExhausted(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
	)

	if _, err := client.GetAccountInfo(context.Background(), "pubkey"); err == nil {
		t.Fatal("expected error after retries")
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	_, err := client.GetTransaction(context.Background(), "sig")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}

	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}

	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}
		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   uint64(1000000),
				"owner":      "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo",
				"data":       []string{"SGVsbG8gV29ybGQ=", "base64"},
				"executable": false,
				"rentEpoch":  uint64(100),
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "testpubkey")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Lamports != 1000000 {
		t.Errorf("expected lamports 1000000, got %d", info.Lamports)
	}

	if info.Owner != "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo" {
		t.Errorf("unexpected owner: %s", info.Owner)
	}

	if info.Data != "SGVsbG8gV29ybGQ=" {
		t.Errorf("unexpected data: %s", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := newRPCServer(t, func(rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_GetAsset(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getAsset" {
			t.Errorf("expected method getAsset, got %s", req.Method)
		}
		params, ok := req.Params.(map[string]interface{})
		if !ok {
			t.Errorf("expected named params, got %T", req.Params)
			return nil
		}
		if params["id"] != "MintABC" {
			t.Errorf("expected id MintABC, got %v", params["id"])
		}
		opts := params["displayOptions"].(map[string]interface{})
		if opts["showCollectionMetadata"] != true {
			t.Errorf("expected showCollectionMetadata true, got %v", opts["showCollectionMetadata"])
		}

		return map[string]interface{}{
			"id":        "MintABC",
			"interface": "FungibleToken",
			"content": map[string]interface{}{
				"json_uri": "https://example.com/meta.json",
				"metadata": map[string]interface{}{
					"name":   "Alpha Coin",
					"symbol": "ALPHA",
				},
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	asset, err := client.GetAsset(context.Background(), "MintABC")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}

	if asset.Name() != "Alpha Coin" {
		t.Errorf("expected name Alpha Coin, got %q", asset.Name())
	}

	if asset.Symbol() != "ALPHA" {
		t.Errorf("expected symbol ALPHA, got %q", asset.Symbol())
	}
}

func TestHTTPClient_GetAsset_NoContent(t *testing.T) {
	server := newRPCServer(t, func(rpcRequest) interface{} {
		return map[string]interface{}{"id": "MintABC"}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	asset, err := client.GetAsset(context.Background(), "MintABC")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}

	if asset.Name() != "" || asset.Symbol() != "" {
		t.Errorf("expected empty name/symbol, got %q/%q", asset.Name(), asset.Symbol())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetAccountInfo(ctx, "pubkey")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestHTTPClient_HonoursRetryAfter(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": nil},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(1),
		WithRetryDelay(time.Millisecond),
	)

	start := time.Now()
	if _, err := client.GetAccountInfo(context.Background(), "pubkey"); err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("expected to wait for Retry-After, waited %v", elapsed)
	}
}

func TestRetryAfter(t *testing.T) {
	cases := map[string]time.Duration{
		"":       0,
		"2":      2 * time.Second,
		" 3 ":    3 * time.Second,
		"-1":     0,
		"Wed, 1": 0,
	}
	for in, want := range cases {
		if got := retryAfter(in); got != want {
			t.Errorf("retryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}
