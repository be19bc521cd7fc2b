package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// maxKeysPerRead is the upstream getMultipleAccounts batch limit.
const maxKeysPerRead = 100

// Account is a raw ledger account read.
type Account struct {
	Key   solana.PublicKey
	Owner solana.PublicKey
	Data  []byte
}

// AccountReader batch-reads raw account data. The result list is ordered to
// match the request order; absent accounts yield nil entries.
type AccountReader interface {
	GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error)
}

// AccountScanner enumerates program accounts matching a group field.
type AccountScanner interface {
	ScanProgramAccounts(ctx context.Context, program solana.PublicKey, groupOffset uint64, group solana.PublicKey) ([]*Account, error)
}

// Options parameterise ledger RPC access.
type Options struct {
	RPCURL  string
	Timeout time.Duration
}

// Client provides chunked, order-preserving reads over a JSON-RPC endpoint.
type Client struct {
	opts      Options
	logger    zerolog.Logger
	client    *rpc.Client
	clientMux sync.Mutex
}

// NewClient builds a ledger client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	return &Client{opts: opts, logger: logger.With().Str("component", "ledger").Logger()}
}

func (c *Client) getClient() (*rpc.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.opts.RPCURL == "" {
		return nil, errors.New("ledger rpc url not configured")
	}
	c.client = rpc.New(c.opts.RPCURL)
	return c.client, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// GetMultipleAccounts reads all requested accounts as one logical call,
// chunked internally to respect the upstream batch limit.
func (c *Client) GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error) {
	client, err := c.getClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	out := make([]*Account, 0, len(keys))
	for start := 0; start < len(keys); start += maxKeysPerRead {
		end := start + maxKeysPerRead
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[start:end]

		res, err := client.GetMultipleAccounts(ctx, chunk...)
		if err != nil {
			return nil, fmt.Errorf("get multiple accounts: %w", err)
		}
		if len(res.Value) != len(chunk) {
			return nil, fmt.Errorf("get multiple accounts: expected %d results, got %d", len(chunk), len(res.Value))
		}
		for i, ai := range res.Value {
			if ai == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, &Account{
				Key:   chunk[i],
				Owner: ai.Owner,
				Data:  ai.Data.GetBinary(),
			})
		}
	}

	return out, nil
}

// ScanProgramAccounts lists accounts owned by program whose bytes at
// groupOffset equal the group address.
func (c *Client) ScanProgramAccounts(ctx context.Context, program solana.PublicKey, groupOffset uint64, group solana.PublicKey) ([]*Account, error) {
	client, err := c.getClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := client.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
		Filters: []rpc.RPCFilter{
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: groupOffset,
					Bytes:  solana.Base58(group.Bytes()),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan program accounts: %w", err)
	}

	out := make([]*Account, 0, len(res))
	for _, keyed := range res {
		if keyed == nil || keyed.Account == nil {
			continue
		}
		out = append(out, &Account{
			Key:   keyed.Pubkey,
			Owner: keyed.Account.Owner,
			Data:  keyed.Account.Data.GetBinary(),
		})
	}
	return out, nil
}

var (
	_ AccountReader  = (*Client)(nil)
	_ AccountScanner = (*Client)(nil)
)
