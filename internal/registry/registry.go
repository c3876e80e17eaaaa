// Package registry defines the clients for the external token registries the
// farm settles against. A registry exposes atomic "credit an account" and
// "debit-transfer to an account" operations whose success or failure is only
// known when the call returns; a timeout counts as failure and triggers the
// same compensation path as an explicit rejection.
package registry

import (
	"context"

	"github.com/holiman/uint256"
)

// TokenClient talks to one fungible token registry. Every call carries the
// leg's idempotency key: legs execute at least once, and the key is what lets
// the registry drop a duplicate delivery instead of applying it twice.
type TokenClient interface {
	// Credit mints or credits amount to account.
	Credit(ctx context.Context, key, account string, amount *uint256.Int) error
	// DebitTransfer moves amount from the farm's custody back to account.
	DebitTransfer(ctx context.Context, key, account string, amount *uint256.Int) error
}

// ItemClient talks to one non-fungible collection registry.
type ItemClient interface {
	// Transfer returns a custodied item to account.
	Transfer(ctx context.Context, key, account, itemID string) error
}

// Clients bundles the registries a farm instance settles against, keyed by
// reward token symbol and by collection id.
type Clients struct {
	Tokens      map[string]TokenClient
	Collections map[string]ItemClient
}

// Token returns the registry client for a reward or stake token symbol.
func (c *Clients) Token(symbol string) (TokenClient, bool) {
	client, ok := c.Tokens[symbol]
	return client, ok
}

// Collection returns the registry client for a collection id.
func (c *Clients) Collection(id string) (ItemClient, bool) {
	client, ok := c.Collections[id]
	return client, ok
}
