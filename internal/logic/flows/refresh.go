package flows

import (
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

type RefreshAccounts struct {
	LpMint     types.Pubkey
	TreasuryLp types.Pubkey
}

// RefreshWeights 实现收益、重算权重、更新价格快照，并把收益分成铸造给 treasury
func RefreshWeights(e *Env, a RefreshAccounts) (events.RefreshWeightsEvent, error) {
	var ev events.RefreshWeightsEvent
	if err := e.checkLpMint(a.LpMint); err != nil {
		return ev, err
	}
	if a.TreasuryLp != e.Vault.TreasuryLpAccount {
		return ev, vaulterr.Wrap(vaulterr.ErrInvalidOwner, "treasury lp account %s", a.TreasuryLp)
	}
	supply, err := e.RT.Supply(a.LpMint)
	if err != nil {
		return ev, err
	}
	res, err := e.Vault.RefreshWeights(e.RT.Slot(), supply)
	if err != nil {
		return ev, err
	}
	if res.LpFee > 0 {
		if err := e.checkTokenAccount(a.TreasuryLp, e.Policy.Treasury, a.LpMint); err != nil {
			return ev, err
		}
		if err := e.RT.MintTo(a.LpMint, a.TreasuryLp, e.VaultKey, res.LpFee, e.signer()); err != nil {
			return ev, err
		}
	}

	weights := make([]uint32, len(e.Vault.Protocols))
	for i := range e.Vault.Protocols {
		weights[i] = e.Vault.Protocols[i].Weight
	}
	ev = events.RefreshWeightsEvent{
		Weights:        weights,
		RewardsSum:     res.RewardsSum,
		LpFee:          res.LpFee,
		CurrentTVL:     e.Vault.CurrentTVL,
		PreviousTotal:  res.PreviousPrice.TotalTokens,
		PreviousMinted: res.PreviousPrice.MintedTokens,
	}
	return ev, nil
}
