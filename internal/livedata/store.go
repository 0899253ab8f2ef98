package livedata

import (
	"net/netip"
	"slices"
	"strings"
	"sync"
)

// Store holds the latest network picture in memory. Reads return copies.
type Store struct {
	mu          sync.RWMutex
	nodes       map[string]NetworkNode
	connections map[string]NetworkConnection
	events      []SecurityEvent
}

func NewStore() *Store {
	return &Store{
		nodes:       map[string]NetworkNode{},
		connections: map[string]NetworkConnection{},
	}
}

func cloneNode(n NetworkNode) NetworkNode {
	n.Services = slices.Clone(n.Services)
	n.Vulnerabilities = slices.Clone(n.Vulnerabilities)
	return n
}

// Nodes returns every node ordered by address.
func (s *Store) Nodes() []NetworkNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]NetworkNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, cloneNode(n))
	}
	slices.SortFunc(out, func(a, b NetworkNode) int {
		aa, errA := netip.ParseAddr(a.IP)
		ba, errB := netip.ParseAddr(b.IP)
		if errA != nil || errB != nil {
			return strings.Compare(a.IP, b.IP)
		}
		return aa.Compare(ba)
	})
	return out
}

func (s *Store) Node(id string) (NetworkNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return NetworkNode{}, false
	}
	return cloneNode(n), true
}

func (s *Store) PutNodes(nodes ...NetworkNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		s.nodes[n.ID] = cloneNode(n)
	}
}

// Connections returns every link ordered by endpoint ids.
func (s *Store) Connections() []NetworkConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]NetworkConnection, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b NetworkConnection) int {
		return strings.Compare(a.key(), b.key())
	})
	return out
}

// PutConnections replaces links with the same endpoints.
func (s *Store) PutConnections(conns ...NetworkConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range conns {
		s.connections[c.key()] = c
	}
}

func (s *Store) Events() []SecurityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SecurityEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ReplaceEvents stores events as the current feed and marks their targets
// compromised on intrusion or unauthorized access.
func (s *Store) ReplaceEvents(events []SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = slices.Clone(events)
	for _, e := range events {
		n, ok := s.nodes[e.Target]
		if !ok || !e.compromises() {
			continue
		}
		n.Status = NodeCompromised
		s.nodes[e.Target] = n
	}
}
