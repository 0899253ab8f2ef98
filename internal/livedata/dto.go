package livedata

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/core/common/validation"
)

// DefaultEventWindow is how far back a security event fetch reaches when no
// start time is given.
const DefaultEventWindow = 24 * time.Hour

type ScanNetworkDTO struct {
	Subnet string `json:"subnet"`

	prefix netip.Prefix
}

func subnetValidator(v interface{}) *internal.AppError {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := parseSubnet(s); err != nil {
		return internal.NewValidationFieldError("subnet", "subnet must be an IPv4 address or CIDR", internal.ErrCodeValidationFailed)
	}
	return nil
}

// parseSubnet accepts a CIDR or a bare address, which is read as its /24.
func parseSubnet(s string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(s); err == nil {
		if !p.Addr().Is4() {
			return netip.Prefix{}, fmt.Errorf("not IPv4: %s", s)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if !addr.Is4() {
		return netip.Prefix{}, fmt.Errorf("not IPv4: %s", s)
	}
	return addr.Prefix(24)
}

func (d *ScanNetworkDTO) Validate() error {
	d.Subnet = strings.TrimSpace(d.Subnet)
	if err := validation.NewValidator().
		Field("subnet", d.Subnet).Required().Custom(subnetValidator).
		Validate(); err != nil {
		return err
	}
	d.prefix, _ = parseSubnet(d.Subnet)
	return nil
}

// ScanVulnerabilitiesDTO lists node addresses to assess. An empty list is
// accepted, a missing one is not.
type ScanVulnerabilitiesDTO struct {
	Targets []string `json:"targets"`
}

func (d *ScanVulnerabilitiesDTO) Validate() error {
	if d.Targets == nil {
		return internal.NewValidationFieldError("targets", "targets array is required", internal.ErrCodeValidationFailed)
	}
	v := validation.NewValidator()
	for i, t := range d.Targets {
		d.Targets[i] = strings.TrimSpace(t)
		v.Field(fmt.Sprintf("targets[%d]", i), d.Targets[i]).Required().Custom(addrValidator(i))
	}
	return v.Validate()
}

func addrValidator(i int) validation.ValidatorFunc {
	return func(v interface{}) *internal.AppError {
		s, _ := v.(string)
		if s == "" {
			return nil
		}
		if _, err := netip.ParseAddr(s); err != nil {
			return internal.NewValidationFieldError(fmt.Sprintf("targets[%d]", i), "target must be an IP address", internal.ErrCodeValidationFailed)
		}
		return nil
	}
}

type FetchSecurityEventsDTO struct {
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

// Window resolves the range: end defaults to now and start to
// DefaultEventWindow before end.
func (d *FetchSecurityEventsDTO) Window(now time.Time) (time.Time, time.Time, error) {
	end := now
	if d.EndTime != nil {
		end = *d.EndTime
	}
	start := end.Add(-DefaultEventWindow)
	if d.StartTime != nil {
		start = *d.StartTime
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, internal.NewValidationFieldError("startTime", "startTime must not be after endTime", internal.ErrCodeValidationFailed)
	}
	return start, end, nil
}

type ScanNetworkResponse struct {
	Message string        `json:"message"`
	Nodes   []NetworkNode `json:"nodes"`
}

type ScanVulnerabilitiesResponse struct {
	Message          string `json:"message"`
	OpenVASAvailable bool   `json:"openvasAvailable"`
	Assessed         int    `json:"assessed"`
}

type SecurityEventsResponse struct {
	Message string          `json:"message"`
	Events  []SecurityEvent `json:"events"`
}

type OpenVASStatus struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}
