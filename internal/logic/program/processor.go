// Package program Vault 程序入口：按 discriminator 把指令路由到用户流程、管理指令或协议适配器。
package program

import (
	"errors"
	"fmt"
	"runtime/debug"

	"lending-vault-sol/internal/logic/adapter"
	"lending-vault-sol/internal/logic/events"
	"lending-vault-sol/internal/logic/host"
	"lending-vault-sol/internal/logic/instruction"
	"lending-vault-sol/internal/logic/state"
	"lending-vault-sol/internal/pkg/logger"
	"lending-vault-sol/internal/pkg/types"
)

var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrPanic              = errors.New("instruction panicked")
)

// request 一条指令的执行上下文
type request struct {
	rt       host.Runtime
	name     string
	accounts []host.AccountMeta
	payload  []byte
	seq      uint16
}

// handler 处理一条已识别的指令
type handler func(p *Processor, r *request) error

type route struct {
	name string
	fn   handler
}

// Processor 实现 host.Program
type Processor struct {
	registry *adapter.Registry
	policy   state.Policy
	routes   map[instruction.Discriminator]route
}

var _ host.Program = (*Processor)(nil)

func New(registry *adapter.Registry, policy state.Policy) *Processor {
	p := &Processor{
		registry: registry,
		policy:   policy,
		routes:   make(map[instruction.Discriminator]route),
	}
	registerAdminHandlers(p.routes)
	registerUserHandlers(p.routes)
	registerProtocolHandlers(p.routes)
	return p
}

// Policy 当前生效的全局参数
func (p *Processor) Policy() state.Policy {
	return p.policy
}

// Names 已注册的全部指令名
func (p *Processor) Names() []string {
	names := make([]string, 0, len(p.routes))
	for _, r := range p.routes {
		names = append(names, r.name)
	}
	return names
}

func register(m map[instruction.Discriminator]route, name string, fn handler) {
	d := instruction.NewDiscriminator(name)
	if _, dup := m[d]; dup {
		panic("duplicated instruction " + name)
	}
	m[d] = route{name: name, fn: fn}
}

func (p *Processor) Process(rt host.Runtime, accounts []host.AccountMeta, data []byte) (err error) {
	d, payload, err := instruction.Split(data)
	if err != nil {
		return err
	}
	rte, ok := p.routes[d]
	if !ok {
		return fmt.Errorf("%w: %x", ErrUnknownInstruction, d[:])
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Processor] panic ix=%s: %+v\nstack: %s", rte.name, r, debug.Stack())
			err = fmt.Errorf("%w: %s: %v", ErrPanic, rte.name, r)
		}
	}()

	req := &request{rt: rt, name: rte.name, accounts: accounts, payload: payload}
	if err := rte.fn(p, req); err != nil {
		logger.Debugf("[Processor] ix=%s failed: %v", rte.name, err)
		return err
	}
	return nil
}

// emit 发出一条事件，ID 由指令序号与本指令内的序号组成
func (r *request) emit(t events.Type, vault types.Pubkey, payload any) {
	idx, err := r.rt.CurrentIndex()
	if err != nil {
		idx = 0
	}
	r.rt.Emit(events.Event{
		ID:      events.BuildEventID(idx, r.seq),
		Type:    t,
		Slot:    r.rt.Slot(),
		Vault:   vault,
		Payload: payload,
	})
	r.seq++
}
