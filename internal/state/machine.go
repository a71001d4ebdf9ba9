package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 在线状态常量
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// 事件常量
const (
	EventSeen    = "seen"    // 收到任意报文
	EventTimeout = "timeout" // 存活超时
)

// Machine 单台设备的在线/离线生命周期状态机
type Machine struct {
	mu             sync.RWMutex
	deviceID       string
	fsm            *fsm.FSM
	since          time.Time
	onStatusChange func(deviceID, from, to string)
}

// NewMachine 创建状态机
func NewMachine(deviceID, initialStatus string, onStatusChange func(deviceID, from, to string)) *Machine {
	if initialStatus == "" {
		initialStatus = StatusOffline
	}

	m := &Machine{
		deviceID:       deviceID,
		since:          time.Now(),
		onStatusChange: onStatusChange,
	}

	m.fsm = fsm.NewFSM(
		initialStatus,
		fsm.Events{
			{Name: EventSeen, Src: []string{StatusOffline}, Dst: StatusOnline},
			{Name: EventTimeout, Src: []string{StatusOnline}, Dst: StatusOffline},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStatusChange != nil && e.Src != e.Dst {
					m.onStatusChange(m.deviceID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// Status 获取当前在线状态
func (m *Machine) Status() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// StatusSince 获取当前状态的起始时间
func (m *Machine) StatusSince() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Trigger 触发事件；非法转换（如对已在线设备触发 seen）返回错误
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.since = time.Now()
	return nil
}

// Can 检查事件当前是否可触发
func (m *Machine) Can(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Manager 按设备号管理生命周期状态机
type Manager struct {
	mu       sync.RWMutex
	machines map[string]*Machine
	onChange func(deviceID, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(deviceID, from, to string)) *Manager {
	return &Manager{
		machines: make(map[string]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建设备状态机
func (m *Manager) GetOrCreate(deviceID, initialStatus string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[deviceID]; ok {
		return machine
	}

	machine := NewMachine(deviceID, initialStatus, m.onChange)
	m.machines[deviceID] = machine
	return machine
}

// Get 获取设备状态机
func (m *Manager) Get(deviceID string) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[deviceID]
	return machine, ok
}
