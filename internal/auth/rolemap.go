package auth

import (
	"strings"

	"github.com/frahmantamala/redteam-collab/internal"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/go-ldap/ldap/v3"
)

// RoleMapper maps directory group memberships onto application roles using
// an explicit table. A configured identifier matches a group when it equals
// the group's CN or its full DN, ignoring case. Admin beats lead beats
// analyst; no match yields analyst.
type RoleMapper struct {
	rules []roleRule
}

type roleRule struct {
	role coreuser.Role
	ids  map[string]struct{}
}

func NewRoleMapper(groups internal.RoleGroups) *RoleMapper {
	return &RoleMapper{
		rules: []roleRule{
			{role: coreuser.RoleAdmin, ids: keySet(groups.Admin)},
			{role: coreuser.RoleTeamLead, ids: keySet(groups.Lead)},
			{role: coreuser.RoleAnalyst, ids: keySet(groups.Analyst)},
		},
	}
}

func keySet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func (m *RoleMapper) Map(memberOf []string) coreuser.Role {
	keys := make([]string, 0, 2*len(memberOf))
	for _, dn := range memberOf {
		dn = strings.TrimSpace(dn)
		if dn == "" {
			continue
		}
		keys = append(keys, strings.ToLower(dn))
		if cn, ok := groupCN(dn); ok {
			keys = append(keys, strings.ToLower(cn))
		}
	}

	for _, rule := range m.rules {
		for _, k := range keys {
			if _, ok := rule.ids[k]; ok {
				return rule.role
			}
		}
	}
	return coreuser.RoleAnalyst
}

// groupCN returns the value of the leading CN component of dn.
func groupCN(dn string) (string, bool) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 {
		return "", false
	}
	for _, attr := range parsed.RDNs[0].Attributes {
		if strings.EqualFold(attr.Type, "cn") {
			return attr.Value, true
		}
	}
	return "", false
}
