package livedata

import (
	"fmt"
	"strings"
	"time"
)

type NodeType string

const (
	NodeRouter      NodeType = "router"
	NodeSwitch      NodeType = "switch"
	NodeServer      NodeType = "server"
	NodeWorkstation NodeType = "workstation"
	NodeFirewall    NodeType = "firewall"
)

type NodeStatus string

const (
	NodeOnline      NodeStatus = "online"
	NodeOffline     NodeStatus = "offline"
	NodeCompromised NodeStatus = "compromised"
	NodeVulnerable  NodeStatus = "vulnerable"
)

type EventKind string

const (
	EventIntrusionAttempt   EventKind = "intrusion_attempt"
	EventMalwareDetected    EventKind = "malware_detected"
	EventUnauthorizedAccess EventKind = "unauthorized_access"
	EventDataExfiltration   EventKind = "data_exfiltration"
)

// NetworkNode is a discovered host. ID is the address with dots replaced by
// underscores.
type NetworkNode struct {
	ID              string     `json:"id"`
	Label           string     `json:"label"`
	IP              string     `json:"ip"`
	Type            NodeType   `json:"type"`
	Status          NodeStatus `json:"status"`
	Services        []string   `json:"services"`
	Vulnerabilities []string   `json:"vulnerabilities"`
	LastSeen        time.Time  `json:"lastSeen"`
	CPUUsage        *float64   `json:"cpuUsage,omitempty"`
	MemoryUsage     *float64   `json:"memoryUsage,omitempty"`
	NetworkTraffic  *float64   `json:"networkTraffic,omitempty"`
}

type NetworkConnection struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	Type        string    `json:"type"`
	Protocol    string    `json:"protocol"`
	Port        int       `json:"port"`
	Traffic     int       `json:"traffic"`
	Established time.Time `json:"established"`
}

func (c NetworkConnection) key() string {
	return c.From + "-" + c.To
}

type SecurityEvent struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
	Target         string    `json:"target"`
	Type           EventKind `json:"type"`
	Severity       string    `json:"severity"`
	Details        string    `json:"details"`
	MitreTechnique string    `json:"mitreTechnique,omitempty"`
}

// compromises reports whether the event marks its target node compromised.
func (e SecurityEvent) compromises() bool {
	return e.Type == EventIntrusionAttempt || e.Type == EventUnauthorizedAccess
}

// NodeID derives the node id for an address.
func NodeID(ip string) string {
	return strings.ReplaceAll(ip, ".", "_")
}

type knownCVE struct {
	id          string
	severity    string
	exploitable bool
}

// serviceCVEs maps "service:port" to the advisories checked for it.
var serviceCVEs = map[string][]knownCVE{
	"ssh:22": {
		{"CVE-2023-48795", "MEDIUM", true},
		{"CVE-2024-6387", "HIGH", true},
		{"CVE-2023-51385", "MEDIUM", false},
	},
	"http:80": {
		{"CVE-2024-27316", "HIGH", true},
		{"CVE-2023-44487", "HIGH", true},
		{"CVE-2024-6387", "CRITICAL", true},
	},
	"https:443": {
		{"CVE-2024-2511", "HIGH", false},
		{"CVE-2023-50164", "CRITICAL", true},
		{"CVE-2024-5535", "HIGH", false},
	},
	"mysql:3306": {
		{"CVE-2024-20961", "HIGH", true},
		{"CVE-2023-22084", "MEDIUM", false},
		{"CVE-2024-20982", "HIGH", true},
	},
	"microsoft-ds:445": {
		{"CVE-2024-21334", "CRITICAL", true},
		{"CVE-2023-35311", "HIGH", true},
		{"CVE-2024-26169", "HIGH", false},
	},
	"msrpc:135": {
		{"CVE-2024-20674", "HIGH", true},
		{"CVE-2023-36884", "CRITICAL", true},
		{"CVE-2024-21351", "HIGH", false},
	},
	"ms-wbt-server:3389": {
		{"CVE-2024-21320", "CRITICAL", true},
		{"CVE-2023-21563", "HIGH", true},
		{"CVE-2024-21338", "MEDIUM", false},
	},
}

var mitreTechniques = map[string]string{
	"CVE-2023-48795": "T1557.002 - AiTM: SSH Downgrade",
	"CVE-2024-6387":  "T1068 - Privilege Escalation",
	"CVE-2024-27316": "T1190 - Exploit Public Application",
	"CVE-2023-44487": "T1499.004 - Application Layer DoS",
	"CVE-2023-50164": "T1190 - Apache Struts RCE",
	"CVE-2024-21334": "T1210 - SMB Remote Exploitation",
	"CVE-2023-35311": "T1021.002 - SMB Lateral Movement",
	"CVE-2024-20674": "T1055 - Process Injection",
	"CVE-2023-36884": "T1566.001 - Spearphishing Attachment",
	"CVE-2024-21320": "T1021.001 - RDP Exploitation",
	"CVE-2023-21563": "T1021.001 - RDP Session Hijack",
}

const defaultTechnique = "T1190 - Exploit Public Application"

func mitreTechnique(cve string) string {
	if t, ok := mitreTechniques[cve]; ok {
		return t
	}
	return defaultTechnique
}

// Assess replaces the node's vulnerability list with the advisories known for
// its services and updates its status: compromised when any is critical,
// vulnerable when any match.
func Assess(node *NetworkNode) {
	var found []string
	critical := false
	for _, svc := range node.Services {
		for _, c := range serviceCVEs[svc] {
			exploit := ""
			if c.exploitable {
				exploit = " [EXPLOITABLE]"
			}
			found = append(found, fmt.Sprintf("%s (%s)%s - %s", c.id, c.severity, exploit, mitreTechnique(c.id)))
			if c.severity == "CRITICAL" {
				critical = true
			}
		}
	}

	node.Vulnerabilities = found
	switch {
	case critical:
		node.Status = NodeCompromised
	case len(found) > 0:
		node.Status = NodeVulnerable
	}
}
