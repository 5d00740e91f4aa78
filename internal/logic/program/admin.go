package program

import (
	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

func registerAdminHandlers(m map[instruction.Discriminator]route) {
	register(m, instruction.NameInitializeVault, (*Processor).initializeVault)
	register(m, instruction.NameAddProtocol, (*Processor).addProtocol)
	register(m, instruction.NameSetHashes, (*Processor).setHashes)
	register(m, instruction.NameSetLeverageHashes, (*Processor).setLeverageHashes)
	register(m, instruction.NameSetProtocolWeights, (*Processor).setProtocolWeights)
	register(m, instruction.NameSetRefreshParams, (*Processor).setRefreshParams)
	register(m, instruction.NameSetPaused, (*Processor).setPaused)
}

// initializeVault
//
//	0 admin (signer)  1 vault  2 input_mint  3 borrow_mint  4 lp_mint  5 ticket_mint  6 treasury_lp_account
func (p *Processor) initializeVault(r *request) error {
	if err := r.need(7); err != nil {
		return err
	}
	if err := p.requireAdmin(r, 0); err != nil {
		return err
	}
	var args instruction.InitializeVaultArgs
	if err := r.args(&args); err != nil {
		return err
	}
	vaultKey, inputMint, borrowMint := r.key(1), r.key(2), r.key(3)
	lpMint, ticketMint, treasuryLp := r.key(4), r.key(5), r.key(6)
	programID := r.rt.ProgramID()

	pda, vaultBump, err := r.rt.FindProgramAddress(
		[][]byte{[]byte(consts.VaultSeed), {args.SeedNumber}, inputMint.Bytes()}, programID)
	if err != nil {
		return err
	}
	if pda != vaultKey {
		return vaulterr.Wrap(vaulterr.ErrInvalidOwner, "vault %s, want %s", vaultKey, pda)
	}
	lpPda, lpBump, err := r.rt.FindProgramAddress(state.LpMintSeeds(vaultKey), programID)
	if err != nil {
		return err
	}
	ticketPda, ticketBump, err := r.rt.FindProgramAddress(state.TicketMintSeeds(vaultKey), programID)
	if err != nil {
		return err
	}
	if lpPda != lpMint || ticketPda != ticketMint {
		return vaulterr.Wrap(vaulterr.ErrInvalidMint, "lp or ticket mint is not derived from vault %s", vaultKey)
	}
	decimals, err := r.rt.Decimals(inputMint)
	if err != nil {
		return err
	}

	v := state.NewVault(state.InitParams{
		SeedNumber:        args.SeedNumber,
		Bumps:             state.Bumps{Vault: vaultBump, LpMint: lpBump, TicketMint: ticketBump},
		InputMint:         inputMint,
		BorrowMint:        borrowMint,
		TreasuryLpAccount: treasuryLp,
	})
	data, err := state.EncodeVault(v)
	if err != nil {
		return err
	}
	if err := r.rt.CreateAccount(vaultKey, programID, data, v.Seeds()); err != nil {
		return err
	}
	lpSeeds := append(state.LpMintSeeds(vaultKey), []byte{lpBump})
	if err := r.rt.InitializeMint(lpMint, decimals, vaultKey, lpSeeds); err != nil {
		return err
	}
	ticketSeeds := append(state.TicketMintSeeds(vaultKey), []byte{ticketBump})
	return r.rt.InitializeMint(ticketMint, decimals, vaultKey, ticketSeeds)
}

// adminVault 管理指令的公共部分：0 admin (signer)  1 vault
func (p *Processor) adminVault(r *request, args any, fn func(v *state.Vault, key types.Pubkey) error) error {
	if err := r.need(2); err != nil {
		return err
	}
	if err := p.requireAdmin(r, 0); err != nil {
		return err
	}
	if err := r.args(args); err != nil {
		return err
	}
	return withVault(r, 1, fn)
}

func (p *Processor) addProtocol(r *request) error {
	var args instruction.AddProtocolArgs
	return p.adminVault(r, &args, func(v *state.Vault, _ types.Pubkey) error {
		if _, err := p.registry.Get(args.ProtocolID); err != nil {
			return err
		}
		return v.AddProtocol(args.ProtocolID, r.rt.Slot())
	})
}

func (p *Processor) setHashes(r *request) error {
	var args instruction.SetHashesArgs
	return p.adminVault(r, &args, func(v *state.Vault, _ types.Pubkey) error {
		idx, err := v.ProtocolPosition(args.ProtocolID)
		if err != nil {
			return err
		}
		v.Protocols[idx].SetHashes(args.Hashes[0], args.Hashes[1], args.Hashes[2])
		return nil
	})
}

func (p *Processor) setLeverageHashes(r *request) error {
	var args instruction.SetLeverageHashesArgs
	return p.adminVault(r, &args, func(v *state.Vault, _ types.Pubkey) error {
		idx, err := v.ProtocolPosition(args.ProtocolID)
		if err != nil {
			return err
		}
		v.Protocols[idx].SetLeverageHashes(args.Hashes[0], args.Hashes[1])
		return nil
	})
}

func (p *Processor) setProtocolWeights(r *request) error {
	var args instruction.SetProtocolWeightsArgs
	return p.adminVault(r, &args, func(v *state.Vault, _ types.Pubkey) error {
		return v.SetProtocolWeights(args.Weights)
	})
}

func (p *Processor) setRefreshParams(r *request) error {
	var args instruction.SetRefreshParamsArgs
	return p.adminVault(r, &args, func(v *state.Vault, _ types.Pubkey) error {
		if args.MinElapsedTime < 0 {
			return vaulterr.Wrap(vaulterr.ErrMathOverflow, "negative min elapsed time %d", args.MinElapsedTime)
		}
		v.Refresh = state.RefreshParams{
			MinElapsedTime:     args.MinElapsedTime,
			MinDepositLamports: args.MinDepositLamports,
		}
		return nil
	})
}

func (p *Processor) setPaused(r *request) error {
	var args instruction.SetPausedArgs
	return p.adminVault(r, &args, func(v *state.Vault, _ types.Pubkey) error {
		v.Paused = args.Paused
		return nil
	})
}
