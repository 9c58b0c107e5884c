package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// DefaultChain is the local Hardhat development network.
var DefaultChain = ports.ChainDescriptor{
	ChainID:   "0x7a69",
	ChainName: "Hardhat Local",
	NativeCurrency: ports.NativeCurrency{
		Name:     "Ether",
		Symbol:   "ETH",
		Decimals: 18,
	},
	RPCURLs: []string{"http://127.0.0.1:8545"},
}

// NetworkGuard makes sure the credential provider is connected to the
// deployment network before any authorization or record operation.
type NetworkGuard struct {
	provider ports.CredentialProvider
	log      zerolog.Logger
}

func NewNetworkGuard(provider ports.CredentialProvider, log zerolog.Logger) *NetworkGuard {
	return &NetworkGuard{provider: provider, log: log}
}

// EnsureNetwork returns true when the provider ends up on expected.ChainID.
// A chain the provider does not recognise is registered from expected and
// the switch is retried once. Every failure is returned wrapped in
// domain.ErrNetworkMismatch together with false.
func (g *NetworkGuard) EnsureNetwork(ctx context.Context, expected ports.ChainDescriptor) (bool, error) {
	current, err := g.provider.ChainID(ctx)
	if err != nil {
		return false, g.fail(expected, "read chain id", err)
	}
	if sameChain(current, expected.ChainID) {
		return true, nil
	}

	g.log.Info().Str("current", current).Str("expected", expected.ChainID).Msg("switching network")
	err = g.provider.SwitchChain(ctx, expected.ChainID)
	if errors.Is(err, domain.ErrUnrecognizedChain) {
		g.log.Info().Str("chain_id", expected.ChainID).Str("chain_name", expected.ChainName).Msg("adding network to provider")
		if err := g.provider.AddChain(ctx, expected); err != nil {
			return false, g.fail(expected, "add chain", err)
		}
		err = g.provider.SwitchChain(ctx, expected.ChainID)
	}
	if err != nil {
		return false, g.fail(expected, "switch chain", err)
	}
	return true, nil
}

func (g *NetworkGuard) fail(expected ports.ChainDescriptor, op string, err error) error {
	g.log.Warn().Err(err).Str("chain_id", expected.ChainID).Msg("network check failed")
	return domain.AtStage(domain.StageNetwork, domain.Wrap(domain.ErrNetworkMismatch, fmt.Errorf("%s: %w", op, err)))
}

// sameChain compares hex chain ids ignoring case and leading zeros.
func sameChain(a, b string) bool {
	return normalizeChainID(a) == normalizeChainID(b)
}

func normalizeChainID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.TrimPrefix(id, "0x")
	id = strings.TrimLeft(id, "0")
	return id
}
