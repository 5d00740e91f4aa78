package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"lending-vault-sol/internal/config"
	"lending-vault-sol/internal/pkg/logger"
	"lending-vault-sol/internal/pkg/types"
)

// SlotStreamManager 订阅 slot 与 vault 相关账户：slot 推进 SlotClock，账户变化写入 changes
type SlotStreamManager struct {
	mu                    sync.Mutex                // 互斥锁，保护并发安全
	conn                  *grpc.ClientConn          // gRPC 连接对象
	client                pb.GeyserClient           // gRPC 客户端
	stream                pb.Geyser_SubscribeClient // gRPC 订阅流
	stopped               bool                      // 标记是否已经停止
	reconnectAttempts     int                       // 已重连次数
	reconnectInterval     time.Duration             // 重连基础间隔
	xToken                string                    // 认证用的 x-token
	streamPingIntervalSec int                       // Stream心跳包发送间隔（秒）
	sendTimeoutSec        int                       // gRPC发送超时时间（秒）
	slotRecvTimeout       time.Duration             // 多久收不到 slot 触发重连
	connCtx               context.Context           // 当前连接的 context
	connCancel            context.CancelFunc        // 当前连接的 cancel 函数

	accounts []string // 需要关注变化的账户（base58）
	clock    *SlotClock
	changes  chan<- types.Pubkey
}

func NewSlotStreamManager(conf config.GrpcConfig, accounts []string, clock *SlotClock,
	changes chan<- types.Pubkey) (*SlotStreamManager, error) {
	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(conf.ConnectTimeoutSec)*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		conf.Endpoint,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{InsecureSkipVerify: true})),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(conf.MaxCallRecvMsgSize)),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(conf.KeepalivePingIntervalSec) * time.Second,
			Timeout:             time.Duration(conf.KeepalivePingTimeoutSec) * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &SlotStreamManager{
		conn:                  conn,
		client:                pb.NewGeyserClient(conn),
		reconnectInterval:     time.Duration(conf.ReconnectIntervalSec) * time.Second,
		xToken:                conf.XToken,
		streamPingIntervalSec: conf.StreamPingIntervalSec,
		sendTimeoutSec:        conf.SendTimeoutSec,
		slotRecvTimeout:       time.Duration(conf.SlotRecvTimeoutSec) * time.Second,
		accounts:              accounts,
		clock:                 clock,
		changes:               changes,
	}, nil
}

func (m *SlotStreamManager) Start() {
	m.mustConnect()
}

func (m *SlotStreamManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
	}
}

// 内部循环直到连接成功
func (m *SlotStreamManager) mustConnect() {
	for {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		if m.reconnectAttempts > 0 {
			if m.reconnectAttempts > 3 {
				time.Sleep(m.reconnectInterval * 2)
			} else {
				time.Sleep(m.reconnectInterval)
			}
		}
		logger.Infof("[SlotStreamManager] Connecting... Attempt %d", m.reconnectAttempts+1)
		m.reconnectAttempts++
		if err := m.connect(); err == nil {
			return
		} else {
			logger.Warnf("[SlotStreamManager] Connect failed: %v, will retry...", err)
		}
	}
}

func buildSubscribeRequest(accounts []string) *pb.SubscribeRequest {
	slots := map[string]*pb.SubscribeRequestFilterSlots{
		"slots": {FilterByCommitment: boolPtr(true)},
	}
	req := &pb.SubscribeRequest{Slots: slots}
	if len(accounts) > 0 {
		req.Accounts = map[string]*pb.SubscribeRequestFilterAccounts{
			"vault": {Account: accounts},
		}
	}
	commitment := pb.CommitmentLevel_CONFIRMED
	req.Commitment = &commitment
	return req
}

// connect 只尝试一次连接
func (m *SlotStreamManager) connect() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return errors.New("manager is stopped")
	}
	defer m.mu.Unlock()

	// 先关闭旧的 context，优雅退出旧 goroutine
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.connCtx, m.connCancel = context.WithCancel(context.Background())

	metaCtx := metadata.NewOutgoingContext(
		m.connCtx,
		metadata.New(map[string]string{"x-token": m.xToken}),
	)
	stream, err := m.client.Subscribe(metaCtx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	req := buildSubscribeRequest(m.accounts)
	if err := sendWithTimeout(m.connCtx, stream.Send, req, time.Duration(m.sendTimeoutSec)*time.Second); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}

	m.stream = stream
	m.reconnectAttempts = 0
	logger.Infof("[SlotStreamManager] Connection established, watching %d accounts", len(m.accounts))

	go m.pingLoop(m.connCtx)
	go m.recvLoop(m.connCtx)
	return nil
}

func (m *SlotStreamManager) recvLoop(ctx context.Context) {
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		update, err := m.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Warnf("[SlotStreamManager] Stream closed by server (EOF), will reconnect")
				m.reconnect()
				return
			}
			logger.Warnf("[SlotStreamManager] Stream error: %v", err)
			if m.reconnectIfSlotTimeout(last) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if m.handleUpdate(update) {
			last = time.Now()
		}
		if m.reconnectIfSlotTimeout(last) {
			return
		}
	}
}

// handleUpdate 处理一条推送，收到 slot 时返回 true
func (m *SlotStreamManager) handleUpdate(update *pb.SubscribeUpdate) bool {
	switch u := update.GetUpdateOneof().(type) {
	case *pb.SubscribeUpdate_Slot:
		m.clock.Update(u.Slot.GetSlot())
		return true
	case *pb.SubscribeUpdate_Account:
		info := u.Account.GetAccount()
		if info == nil || len(info.GetPubkey()) != 32 {
			return false
		}
		m.clock.Update(u.Account.GetSlot())
		key := types.Pubkey(info.GetPubkey())
		select {
		case m.changes <- key:
		default:
			// 同步服务还没处理完上一次变化，丢弃即可，下一轮会读取最新状态
			logger.Debugf("[SlotStreamManager] changes full, drop %s at slot %d", key, u.Account.GetSlot())
		}
	}
	return false
}

// 带超时的 Send
func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}

// 心跳检测
func (m *SlotStreamManager) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.streamPingIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingReq := &pb.SubscribeRequest{Ping: &pb.SubscribeRequestPing{Id: 1}}
			err := sendWithTimeout(ctx, m.stream.Send, pingReq, time.Duration(m.sendTimeoutSec)*time.Second)
			if err != nil {
				// 只记录日志，不触发重连
				logger.Warnf("[SlotStreamManager] Ping failed: %v", err)
			}
		}
	}
}

func (m *SlotStreamManager) reconnectIfSlotTimeout(last time.Time) bool {
	if m.slotRecvTimeout > 0 && time.Since(last) > m.slotRecvTimeout {
		logger.Warnf("[SlotStreamManager] %v未收到slot，触发重连", m.slotRecvTimeout)
		m.reconnect()
		return true
	}
	return false
}

func (m *SlotStreamManager) reconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.mu.Unlock()

	go m.mustConnect()
}

func boolPtr(b bool) *bool {
	return &b
}
