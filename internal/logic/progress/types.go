package progress

// SlotStatus 表示某个 vault 在某个 slot 的同步状态
type SlotStatus int

const (
	SlotUnknown   SlotStatus = 0 // Redis 不存在
	SlotProcessed SlotStatus = 1 // 快照已保存并发布
	SlotInvalid   SlotStatus = 2 // 账户解码失败、跳过
	SlotPending   SlotStatus = 3 // 正在处理
)

func (s SlotStatus) String() string {
	switch s {
	case SlotProcessed:
		return "processed"
	case SlotInvalid:
		return "invalid"
	case SlotPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Snapshot Redis 中保存的最新快照
type Snapshot struct {
	Slot uint64
	Data []byte // EncodeStruct 的输出
}
