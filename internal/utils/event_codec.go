package utils

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventHeaderSize 事件类型前缀长度
const EventHeaderSize = 4

// EncodeEvent 将 protobuf 消息编码为带事件类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为 protobuf 序列化数据（使用 MarshalAppend）
func EncodeEvent(eventType uint32, msg proto.Message) ([]byte, error) {
	const extraBuffer = 32 // 多预留一些空间，降低 MarshalAppend 触发扩容的概率

	size := proto.Size(msg)
	buf := make([]byte, EventHeaderSize, EventHeaderSize+size+extraBuffer)
	binary.LittleEndian.PutUint32(buf[:EventHeaderSize], eventType)

	opts := proto.MarshalOptions{Deterministic: true}
	result, err := opts.MarshalAppend(buf, msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: marshal %T: %w", msg, err)
	}
	return result, nil
}

// EncodeStruct 字段表转成 structpb.Struct 后编码，值只能是 JSON 兼容类型
func EncodeStruct(eventType uint32, fields map[string]any) ([]byte, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("EncodeStruct: type %d: %w", eventType, err)
	}
	return EncodeEvent(eventType, msg)
}

// DecodeStruct EncodeStruct 的逆过程
func DecodeStruct(data []byte) (uint32, map[string]any, error) {
	if len(data) < EventHeaderSize {
		return 0, nil, fmt.Errorf("DecodeStruct: %d bytes, need at least %d", len(data), EventHeaderSize)
	}
	eventType := binary.LittleEndian.Uint32(data[:EventHeaderSize])
	var msg structpb.Struct
	if err := proto.Unmarshal(data[EventHeaderSize:], &msg); err != nil {
		return eventType, nil, fmt.Errorf("DecodeStruct: type %d: %w", eventType, err)
	}
	return eventType, msg.AsMap(), nil
}
