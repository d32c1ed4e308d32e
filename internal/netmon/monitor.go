// Package netmon tracks reachability of the object-storage endpoint. The
// upload pipeline consults it before a batch and aborts mid-batch when
// connectivity drops.
package netmon

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const probeTimeout = 3 * time.Second

// Probe checks reachability once. The default dials the endpoint over TCP.
type Probe func() error

// Monitor polls a Probe at a fixed interval and publishes transitions.
type Monitor struct {
	probe    Probe
	interval time.Duration
	log      *zap.SugaredLogger

	mu      sync.Mutex
	online  bool
	subs    map[int]chan bool
	nextSub int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds a monitor that probes addr ("host:port") over TCP.
func New(addr string, interval time.Duration, log *zap.SugaredLogger) *Monitor {
	return NewWithProbe(func() error {
		conn, err := net.DialTimeout("tcp", addr, probeTimeout)
		if err != nil {
			return err
		}
		return conn.Close()
	}, interval, log)
}

// NewWithProbe builds a monitor around a custom probe. Tests inject one.
func NewWithProbe(probe Probe, interval time.Duration, log *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		log:      log,
		online:   true,
		subs:     make(map[int]chan bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start probes once synchronously, then keeps polling until Stop.
func (m *Monitor) Start() {
	m.check()
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.check()
			}
		}
	}()
}

// Online reports the last observed reachability.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers for reachability transitions. The cancel func releases
// the subscription.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan bool, 1)
	m.subs[id] = ch
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

func (m *Monitor) check() {
	err := m.probe()
	online := err == nil

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	var subs []chan bool
	if changed {
		for _, ch := range m.subs {
			subs = append(subs, ch)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.log.Infof("storage endpoint reachable again")
	} else {
		m.log.Warnf("storage endpoint unreachable: %v", err)
	}
	for _, ch := range subs {
		select {
		case ch <- online:
		default:
		}
	}
}
