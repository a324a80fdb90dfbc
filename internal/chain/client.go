package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is returned when an account does not exist at the
// queried address. For escrow records this is an expected outcome: the
// program closes the account the moment a transfer resolves.
var ErrAccountNotFound = errors.New("account not found")

// Client wraps the Solana JSON-RPC client and provides helper methods.
type Client struct {
	rpcClient  *rpc.Client
	commitment rpc.CommitmentType
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	return &Client{
		rpcClient:  rpc.New(rpcURL),
		commitment: rpc.CommitmentConfirmed,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// FetchAccount returns the raw data of the account at addr, or
// ErrAccountNotFound if the account does not exist.
func (c *Client) FetchAccount(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	res, err := c.rpcClient.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account info %s: %w", addr, err)
	}
	if res == nil || res.Value == nil {
		return nil, ErrAccountNotFound
	}
	data := res.Value.Data.GetBinary()
	if len(data) == 0 {
		return nil, ErrAccountNotFound
	}
	return data, nil
}

// LatestBlockhash returns a recent blockhash for transaction assembly.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	res, err := c.rpcClient.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return res.Value.Blockhash, nil
}

// SendEncodedTransaction forwards a base64-encoded signed transaction to the
// ledger and returns its signature.
func (c *Client) SendEncodedTransaction(ctx context.Context, txBase64 string) (solana.Signature, error) {
	sig, err := c.rpcClient.SendEncodedTransaction(ctx, txBase64)
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// SignatureStatus reports whether the signature has reached confirmed
// commitment and whether the transaction itself failed on-chain.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (confirmed bool, txErr error, err error) {
	res, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return false, nil, fmt.Errorf("get signature statuses: %w", err)
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil, nil
	}
	status := res.Value[0]
	if status.Err != nil {
		return true, fmt.Errorf("transaction failed on-chain: %v", status.Err), nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return true, nil, nil
	}
	return false, nil, nil
}

// OpResult is the confirmed view of one operation: every address the
// transaction referenced plus its emitted log lines.
type OpResult struct {
	Signature solana.Signature
	Accounts  []solana.PublicKey
	Logs      []string
}

// OperationResult fetches the full record of a confirmed transaction.
func (c *Client) OperationResult(ctx context.Context, sig solana.Signature) (*OpResult, error) {
	maxVersion := uint64(0)
	out, err := c.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get transaction %s: %w", sig, err)
	}
	if out == nil || out.Transaction == nil {
		return nil, ErrAccountNotFound
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", sig, err)
	}

	result := &OpResult{Signature: sig, Accounts: tx.Message.AccountKeys}
	if out.Meta != nil {
		result.Logs = out.Meta.LogMessages
	}
	return result, nil
}

// IsAlreadyProcessed reports whether a send failure means the transaction
// already landed. Duplicate submission of a confirmed operation is success,
// not an error.
func IsAlreadyProcessed(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "already been processed")
}

// IsTransient reports whether an RPC failure is worth retrying. Only reads
// and the confirmation poll consult this; writes are never re-submitted.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"i/o timeout",
		"EOF",
		"429",
		"502",
		"503",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
