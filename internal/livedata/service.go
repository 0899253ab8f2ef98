package livedata

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	"github.com/frahmantamala/redteam-collab/internal/core/events"
)

type ServiceAPI interface {
	NetworkNodes(ctx context.Context) []NetworkNode
	NetworkConnections(ctx context.Context) []NetworkConnection
	SecurityEvents(ctx context.Context) []SecurityEvent
	OpenVASStatus(ctx context.Context) OpenVASStatus
	ScanNetwork(ctx context.Context, actor *auth.User, dto ScanNetworkDTO) ([]NetworkNode, error)
	ScanVulnerabilities(ctx context.Context, actor *auth.User, dto ScanVulnerabilitiesDTO) (*ScanVulnerabilitiesResponse, error)
	FetchSecurityEvents(ctx context.Context, dto FetchSecurityEventsDTO) ([]SecurityEvent, error)
}

type Service struct {
	store   *Store
	scanner Scanner
	siem    EventSource
	openvas Prober
	events  events.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store *Store, scanner Scanner, siem EventSource, openvas Prober, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if siem == nil {
		siem = NoEvents{}
	}
	return &Service{
		store:   store,
		scanner: scanner,
		siem:    siem,
		openvas: openvas,
		events:  publisher,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) NetworkNodes(context.Context) []NetworkNode {
	return s.store.Nodes()
}

func (s *Service) NetworkConnections(context.Context) []NetworkConnection {
	return s.store.Connections()
}

func (s *Service) SecurityEvents(context.Context) []SecurityEvent {
	return s.store.Events()
}

func (s *Service) OpenVASStatus(ctx context.Context) OpenVASStatus {
	if s.openvas != nil && s.openvas.Available(ctx) {
		return OpenVASStatus{Connected: true, Message: "OpenVAS is accessible"}
	}
	return OpenVASStatus{Connected: false, Message: "OpenVAS is not accessible or not configured"}
}

// nodeFromHost classifies a swept host and flags exposed services.
func nodeFromHost(h Host, seen time.Time) NetworkNode {
	ip := h.Addr.String()
	label := h.Hostname
	if label == "" {
		label = "Host " + ip
	}

	typ := NodeServer
	switch {
	case hasService(h.Services, "msrpc", "ms-wbt-server"):
		typ = NodeWorkstation
	case strings.HasSuffix(ip, ".1"):
		typ = NodeRouter
	}

	vulns := []string{}
	if hasService(h.Services, "ssh") {
		vulns = append(vulns, "SSH service exposed")
	}
	if hasService(h.Services, "mysql") {
		vulns = append(vulns, "Database service exposed")
	}
	if hasService(h.Services, "microsoft-ds") {
		vulns = append(vulns, "SMB service available")
	}

	status := NodeOnline
	if len(vulns) > 0 {
		status = NodeVulnerable
	}
	return NetworkNode{
		ID:              NodeID(ip),
		Label:           label,
		IP:              ip,
		Type:            typ,
		Status:          status,
		Services:        h.Services,
		Vulnerabilities: vulns,
		LastSeen:        seen,
	}
}

func hasService(services []string, names ...string) bool {
	for _, svc := range services {
		for _, n := range names {
			if strings.Contains(svc, n) {
				return true
			}
		}
	}
	return false
}

// linkTopology connects every node to the gateway and web servers to
// database servers.
func linkTopology(nodes []NetworkNode, now time.Time) []NetworkConnection {
	var links []NetworkConnection

	var gateway *NetworkNode
	for i := range nodes {
		if nodes[i].Type == NodeRouter || strings.HasSuffix(nodes[i].IP, ".1") {
			gateway = &nodes[i]
			break
		}
	}
	if gateway != nil {
		for _, n := range nodes {
			if n.ID == gateway.ID {
				continue
			}
			links = append(links, NetworkConnection{
				From: gateway.ID, To: n.ID, Type: "ethernet", Protocol: "TCP", Port: 80,
				Traffic: rand.Intn(1000), Established: now,
			})
		}
	}

	for _, web := range nodes {
		if web.Type != NodeServer || !hasService(web.Services, "http") {
			continue
		}
		for _, db := range nodes {
			if db.Type != NodeServer || db.ID == web.ID || !hasService(db.Services, "mysql") {
				continue
			}
			links = append(links, NetworkConnection{
				From: web.ID, To: db.ID, Type: "ethernet", Protocol: "TCP", Port: 3306,
				Traffic: rand.Intn(500), Established: now,
			})
		}
	}
	return links
}

func (s *Service) ScanNetwork(ctx context.Context, actor *auth.User, dto ScanNetworkDTO) ([]NetworkNode, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	hosts, err := s.scanner.Scan(ctx, dto.prefix)
	if err != nil {
		s.logger.Error("network scan failed", "error", err, "subnet", dto.prefix.String())
		return nil, internal.NewInternalError("failed to scan network", err)
	}

	now := s.now()
	nodes := make([]NetworkNode, 0, len(hosts))
	for _, h := range hosts {
		nodes = append(nodes, nodeFromHost(h, now))
	}
	s.store.PutNodes(nodes...)
	s.store.PutConnections(linkTopology(nodes, now)...)

	s.logger.Info("network scan completed", "subnet", dto.prefix.String(), "hosts", len(nodes), "user_id", actor.ID)
	if err := s.events.Publish(ctx, events.NewNetworkScannedEvent(actor.ID, dto.prefix.String(), len(nodes))); err != nil {
		s.logger.Warn("failed to publish event", "error", err)
	}
	return nodes, nil
}

// ScanVulnerabilities assesses every target already in the store. Unknown
// targets are skipped, and nothing is assessed while OpenVAS is unreachable.
func (s *Service) ScanVulnerabilities(ctx context.Context, actor *auth.User, dto ScanVulnerabilitiesDTO) (*ScanVulnerabilitiesResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	resp := &ScanVulnerabilitiesResponse{Message: "Vulnerability scan initiated"}
	if s.openvas == nil || !s.openvas.Available(ctx) {
		s.logger.Warn("openvas not accessible, skipping vulnerability scan", "targets", len(dto.Targets))
		return resp, nil
	}
	resp.OpenVASAvailable = true

	for _, target := range dto.Targets {
		node, ok := s.store.Node(NodeID(target))
		if !ok {
			s.logger.Debug("vulnerability scan target not discovered", "target", target)
			continue
		}
		Assess(&node)
		s.store.PutNodes(node)
		resp.Assessed++
		s.logger.Info("vulnerability scan finished", "target", target, "vulnerabilities", len(node.Vulnerabilities))
	}

	if err := s.events.Publish(ctx, events.NewVulnerabilityScannedEvent(actor.ID, dto.Targets, resp.Assessed)); err != nil {
		s.logger.Warn("failed to publish event", "error", err)
	}
	return resp, nil
}

func (s *Service) FetchSecurityEvents(ctx context.Context, dto FetchSecurityEventsDTO) ([]SecurityEvent, error) {
	start, end, err := dto.Window(s.now())
	if err != nil {
		return nil, err
	}

	found, err := s.siem.Query(ctx, start, end)
	if err != nil {
		s.logger.Error("siem query failed", "error", err)
		return nil, internal.ErrEventSourceUnavailable.WithCause(err)
	}
	s.store.ReplaceEvents(found)
	return s.store.Events(), nil
}
