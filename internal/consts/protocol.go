package consts

// 协议编号，与链上 Vault 中 Position.protocol_id 一致
const (
	ProtocolMango            uint8 = iota // 0
	ProtocolSolend                        // 1
	ProtocolPort                          // 2
	ProtocolTulip                         // 3
	ProtocolFrancium                      // 4
	ProtocolSolendStablePool              // 5
)

var ProtocolNames = []string{
	"Mango",            // 0
	"Solend",           // 1
	"Port",             // 2
	"Tulip",            // 3
	"Francium",         // 4
	"SolendStablePool", // 5
}

// ProtocolCount 合法的协议编号个数
var ProtocolCount = uint8(len(ProtocolNames))

func ProtocolName(id uint8) string {
	if int(id) < len(ProtocolNames) {
		return ProtocolNames[id]
	}
	return "Unknown"
}
