package state

import (
	"bytes"
	"fmt"

	"github.com/near/borsh-go"

	"lending-vault-sol/internal/consts"
	"lending-vault-sol/internal/pkg/types"
	"lending-vault-sol/internal/pkg/vaulterr"
)

const (
	DiscriminatorSize = 8

	lpPriceSize      = 8 + 8
	integralSize     = 8 + 8 + 16
	rewardsSize      = 8 + 8 + 16 + integralSize*2
	hashPubkeySize   = types.CheckHashBytes * 5
	PositionSize     = 1 + hashPubkeySize + 4 + 8 + 8 + rewardsSize
	vaultFixedSize   = 1 + 1 + 1 + 3 + 32*3 + 8 + 16 + 8 + lpPriceSize + 4
	VaultAccountSize = DiscriminatorSize + vaultFixedSize + PositionSize*consts.MaxProtocols
)

// VaultDiscriminator sha256("account:VaultAccount")[:8]
var VaultDiscriminator = AccountDiscriminator("VaultAccount")

func AccountDiscriminator(name string) [DiscriminatorSize]byte {
	var d [DiscriminatorSize]byte
	h := types.HashV([]byte("account:" + name))
	copy(d[:], h[:DiscriminatorSize])
	return d
}

// EncodeVault 8 字节 discriminator + borsh 字段
func EncodeVault(v *Vault) ([]byte, error) {
	if len(v.Protocols) > consts.MaxProtocols {
		return nil, vaulterr.ErrInvalidArraySize
	}
	body, err := borsh.Serialize(*v)
	if err != nil {
		return nil, fmt.Errorf("borsh serialize vault: %w", err)
	}
	out := make([]byte, 0, DiscriminatorSize+len(body))
	out = append(out, VaultDiscriminator[:]...)
	return append(out, body...), nil
}

// DecodeVault 校验 discriminator 后反序列化
func DecodeVault(data []byte) (*Vault, error) {
	if len(data) < DiscriminatorSize || !bytes.Equal(data[:DiscriminatorSize], VaultDiscriminator[:]) {
		return nil, vaulterr.Wrap(vaulterr.ErrInvalidOwner, "not a vault account")
	}
	var v Vault
	if err := borsh.Deserialize(&v, data[DiscriminatorSize:]); err != nil {
		return nil, fmt.Errorf("borsh deserialize vault: %w", err)
	}
	if len(v.Protocols) > consts.MaxProtocols {
		return nil, vaulterr.ErrInvalidArraySize
	}
	return &v, nil
}
