package program

import (
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

func (r *request) need(n int) error {
	if len(r.accounts) < n {
		return vaulterr.Wrap(vaulterr.ErrInvalidArraySize, "%s expects %d accounts, got %d", r.name, n, len(r.accounts))
	}
	return nil
}

func (r *request) key(i int) types.Pubkey {
	return r.accounts[i].Pubkey
}

// signer 第 i 个账户必须签名
func (r *request) signer(i int) (types.Pubkey, error) {
	m := r.accounts[i]
	if !m.IsSigner {
		return types.Pubkey{}, vaulterr.Wrap(vaulterr.ErrUnauthorizedUser, "%s: %s did not sign", r.name, m.Pubkey)
	}
	return m.Pubkey, nil
}

func (r *request) args(v any) error {
	if err := instruction.DecodeArgs(r.payload, v); err != nil {
		return vaulterr.Wrap(vaulterr.ErrInvalidInstructions, "%s args: %v", r.name, err)
	}
	return nil
}

// requireAdmin 第 i 个账户必须是签名的管理员
func (p *Processor) requireAdmin(r *request, i int) error {
	k, err := r.signer(i)
	if err != nil {
		return err
	}
	if k != p.policy.Admin {
		return vaulterr.Wrap(vaulterr.ErrUnauthorizedUser, "%s: %s is not admin", r.name, k)
	}
	return nil
}

// loadVault 读取第 i 个账户中的 Vault，校验 owner 与 PDA
func loadVault(r *request, i int) (*state.Vault, types.Pubkey, error) {
	key := r.key(i)
	owner, err := r.rt.AccountOwner(key)
	if err != nil {
		return nil, key, err
	}
	if owner != r.rt.ProgramID() {
		return nil, key, vaulterr.Wrap(vaulterr.ErrInvalidOwner, "vault %s owned by %s", key, owner)
	}
	data, err := r.rt.AccountData(key)
	if err != nil {
		return nil, key, err
	}
	v, err := state.DecodeVault(data)
	if err != nil {
		return nil, key, err
	}
	pda, err := r.rt.CreateProgramAddress(v.Seeds(), r.rt.ProgramID())
	if err != nil || pda != key {
		return nil, key, vaulterr.Wrap(vaulterr.ErrInvalidOwner, "vault %s is not the program address of its seeds", key)
	}
	return v, key, nil
}

func saveVault(rt host.Runtime, key types.Pubkey, v *state.Vault) error {
	data, err := state.EncodeVault(v)
	if err != nil {
		return err
	}
	return rt.WriteAccount(key, data)
}

// withVault 加载、修改并写回 Vault；fn 出错时不写回
func withVault(r *request, i int, fn func(v *state.Vault, key types.Pubkey) error) error {
	v, key, err := loadVault(r, i)
	if err != nil {
		return err
	}
	if err := fn(v, key); err != nil {
		return err
	}
	return saveVault(r.rt, key, v)
}
