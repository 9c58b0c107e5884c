package ports

import (
	"context"
)

// NativeCurrency describes the fee currency of a chain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ChainDescriptor carries the connection parameters used to register a
// network with the credential provider.
type ChainDescriptor struct {
	ChainID        string         `json:"chainId"`
	ChainName      string         `json:"chainName"`
	NativeCurrency NativeCurrency `json:"nativeCurrency"`
	RPCURLs        []string       `json:"rpcUrls"`
}

// ProviderEventKind enumerates the notifications a credential provider emits.
type ProviderEventKind string

const (
	EventAccountsChanged ProviderEventKind = "accountsChanged"
	EventChainChanged    ProviderEventKind = "chainChanged"
	EventDisconnect      ProviderEventKind = "disconnect"
)

// ProviderEvent is a single notification from the credential provider.
type ProviderEvent struct {
	Kind     ProviderEventKind
	Accounts []string
	ChainID  string
}

// CredentialProvider is the wallet environment the client runs against.
type CredentialProvider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	Accounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (string, error)
	// SwitchChain returns an error wrapping domain.ErrUnrecognizedChain when
	// the provider does not know chainID.
	SwitchChain(ctx context.Context, chainID string) error
	AddChain(ctx context.Context, chain ChainDescriptor) error
	// Subscribe registers fn for every notification. fn must not block.
	Subscribe(fn func(ProviderEvent)) (unsubscribe func())
}
