package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"digipet-api/internal/model"
)

// genericOperationWatermark prefixes forged bytes before signing.
const genericOperationWatermark = 0x03

// RPCConfig configures the node RPC client.
type RPCConfig struct {
	BaseURL         string
	ContractAddress string
	SourceAddress   string
	// SigningKey is the hex-encoded 32-byte ed25519 seed of SourceAddress.
	SigningKey   string
	Fee          int64
	GasLimit     int64
	StorageLimit int64
	Timeout      time.Duration
}

// HTTPError is a non-2xx node response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ledger rpc: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("ledger rpc: status=%d body=%s", e.StatusCode, e.Body)
}

// RPCClient mints pets through a Tezos-style node RPC: it forges a call to
// the contract's mint entrypoint, signs it locally and injects it.
type RPCClient struct {
	http    *http.Client
	baseURL string
	cfg     RPCConfig
	key     ed25519.PrivateKey
	log     *slog.Logger
}

// NewRPCClient validates cfg and builds a client.
func NewRPCClient(cfg RPCConfig, logger *slog.Logger) (*RPCClient, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid ledger rpc url: %w", err)
	}
	if cfg.ContractAddress == "" || cfg.SourceAddress == "" {
		return nil, errors.New("ledger contract and source addresses are required")
	}
	seed, err := hex.DecodeString(strings.TrimSpace(cfg.SigningKey))
	if err != nil {
		return nil, fmt.Errorf("invalid ledger signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid ledger signing key: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RPCClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		key:     ed25519.NewKeyFromSeed(seed),
		log:     logger.With("component", "ledger"),
	}, nil
}

// WithHTTPClient replaces the HTTP client, for tests.
func (c *RPCClient) WithHTTPClient(h *http.Client) *RPCClient {
	c.http = h
	return c
}

type micheline map[string]any

func michelineString(s string) micheline { return micheline{"string": s} }

func michelinePair(a, b any) micheline {
	return micheline{"prim": "Pair", "args": []any{a, b}}
}

// mintParameter encodes Pair(name, Pair(species, pet_type)).
func mintParameter(pet model.PetIdentity) micheline {
	return michelinePair(
		michelineString(pet.Name),
		michelinePair(michelineString(pet.Species), michelineString(pet.Breed)),
	)
}

type transactionContent struct {
	Kind         string       `json:"kind"`
	Source       string       `json:"source"`
	Fee          string       `json:"fee"`
	Counter      string       `json:"counter"`
	GasLimit     string       `json:"gas_limit"`
	StorageLimit string       `json:"storage_limit"`
	Amount       string       `json:"amount"`
	Destination  string       `json:"destination"`
	Parameters   txParameters `json:"parameters"`
}

type txParameters struct {
	Entrypoint string    `json:"entrypoint"`
	Value      micheline `json:"value"`
}

type forgeRequest struct {
	Branch   string               `json:"branch"`
	Contents []transactionContent `json:"contents"`
}

// SubmitMint forges, signs and injects a mint for pet and returns the
// operation hash.
func (c *RPCClient) SubmitMint(ctx context.Context, pet model.PetIdentity) (string, error) {
	c.log.Info("starting mint", "pet_id", pet.ID)

	var head string
	if err := c.doJSON(ctx, http.MethodGet, "/chains/main/blocks/head/hash", nil, &head); err != nil {
		return "", fmt.Errorf("fetch head hash: %w", err)
	}

	var counterStr string
	path := "/chains/main/blocks/head/context/contracts/" + url.PathEscape(c.cfg.SourceAddress) + "/counter"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &counterStr); err != nil {
		return "", fmt.Errorf("fetch counter: %w", err)
	}
	counter, err := strconv.ParseInt(counterStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse counter %q: %w", counterStr, err)
	}

	tx := transactionContent{
		Kind:         "transaction",
		Source:       c.cfg.SourceAddress,
		Fee:          strconv.FormatInt(c.cfg.Fee, 10),
		Counter:      strconv.FormatInt(counter+1, 10),
		GasLimit:     strconv.FormatInt(c.cfg.GasLimit, 10),
		StorageLimit: strconv.FormatInt(c.cfg.StorageLimit, 10),
		Amount:       "0",
		Destination:  c.cfg.ContractAddress,
		Parameters:   txParameters{Entrypoint: "mint", Value: mintParameter(pet)},
	}

	var forgedHex string
	req := forgeRequest{Branch: head, Contents: []transactionContent{tx}}
	if err := c.doJSON(ctx, http.MethodPost, "/chains/main/blocks/head/helpers/forge/operations", req, &forgedHex); err != nil {
		return "", fmt.Errorf("forge operation: %w", err)
	}
	forged, err := hex.DecodeString(forgedHex)
	if err != nil {
		return "", fmt.Errorf("decode forged operation: %w", err)
	}

	signed := append(forged, c.sign(forged)...)

	var opHash string
	if err := c.doJSON(ctx, http.MethodPost, "/injection/operation", hex.EncodeToString(signed), &opHash); err != nil {
		return "", fmt.Errorf("inject operation: %w", err)
	}

	c.log.Info("injected mint operation", "pet_id", pet.ID, "operation", opHash)
	return opHash, nil
}

// sign returns the ed25519 signature over blake2b-256(watermark || forged).
func (c *RPCClient) sign(forged []byte) []byte {
	msg := make([]byte, 0, len(forged)+1)
	msg = append(msg, genericOperationWatermark)
	msg = append(msg, forged...)
	digest := blake2b.Sum256(msg)
	return ed25519.Sign(c.key, digest[:])
}

// PublicKey returns the signer's public key.
func (c *RPCClient) PublicKey() ed25519.PublicKey {
	return c.key.Public().(ed25519.PublicKey)
}

type blockOperation struct {
	Hash     string `json:"hash"`
	Contents []struct {
		Metadata *struct {
			OperationResult *struct {
				Status string `json:"status"`
			} `json:"operation_result"`
		} `json:"metadata"`
	} `json:"contents"`
}

// PollStatus looks for opHash among the head block's operations.
func (c *RPCClient) PollStatus(ctx context.Context, opHash string) (Status, error) {
	var passes [][]blockOperation
	if err := c.doJSON(ctx, http.MethodGet, "/chains/main/blocks/head/operations", nil, &passes); err != nil {
		return StatusAbsent, fmt.Errorf("fetch head operations: %w", err)
	}

	for _, pass := range passes {
		for _, op := range pass {
			if op.Hash != opHash {
				continue
			}
			if len(op.Contents) == 0 || op.Contents[0].Metadata == nil || op.Contents[0].Metadata.OperationResult == nil {
				return StatusPending, nil
			}
			status := op.Contents[0].Metadata.OperationResult.Status
			if status == "applied" {
				return StatusApplied, nil
			}
			c.log.Warn("operation found but not applied", "operation", opHash, "status", status)
			return StatusFailed, nil
		}
	}
	return StatusAbsent, nil
}

func (c *RPCClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
