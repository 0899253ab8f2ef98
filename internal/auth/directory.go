package auth

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/go-ldap/ldap/v3"
)

const usernamePlaceholder = "{{username}}"

var directoryAttributes = []string{"sAMAccountName", "displayName", "mail", "givenName", "sn", "memberOf"}

// DirectoryProfile is what the directory tells us about a user.
type DirectoryProfile struct {
	DN          string
	Username    string
	DisplayName string
	Email       string
	FirstName   string
	LastName    string
	Groups      []string
}

// DirectoryStrategy authenticates with a two-phase bind: the service account
// finds the entry, then a second connection binds as that entry with the
// supplied password.
type DirectoryStrategy struct {
	cfg    internal.DirectoryConfig
	dialer DirectoryDialer
	roles  *RoleMapper
	repo   Repository
	logger *slog.Logger
}

func NewDirectoryStrategy(cfg internal.DirectoryConfig, dialer DirectoryDialer, repo Repository, logger *slog.Logger) *DirectoryStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SearchFilter == "" {
		cfg.SearchFilter = internal.DefaultSearchFilter
	}
	if cfg.UserIDPrefix == "" {
		cfg.UserIDPrefix = internal.DefaultDirectoryPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = internal.DefaultDirectoryTO
	}
	return &DirectoryStrategy{
		cfg:    cfg,
		dialer: dialer,
		roles:  NewRoleMapper(cfg.RoleGroups),
		repo:   repo,
		logger: logger.With("component", "directory"),
	}
}

func (s *DirectoryStrategy) Name() string { return "ldap" }

// MissingSettings lists required settings that are empty.
func (s *DirectoryStrategy) MissingSettings() []string {
	var missing []string
	if s.cfg.URL == "" {
		missing = append(missing, "url")
	}
	if s.cfg.BindDN == "" {
		missing = append(missing, "bindDN")
	}
	if s.cfg.BindPassword == "" {
		missing = append(missing, "bindPassword")
	}
	if s.cfg.SearchBase == "" {
		missing = append(missing, "searchBase")
	}
	return missing
}

func (s *DirectoryStrategy) Configuration() map[string]string {
	return map[string]string{
		"url":        configState(s.cfg.URL),
		"bindDN":     configState(s.cfg.BindDN),
		"searchBase": configState(s.cfg.SearchBase),
	}
}

func (s *DirectoryStrategy) Authenticate(ctx context.Context, username, password string) (*User, error) {
	profile, err := s.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}

	u, err := s.provision(ctx, profile)
	if err != nil {
		return nil, err
	}
	if err := CheckStatus(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Verify runs the bind/search/bind exchange and returns the entry's profile.
// Both connections are closed on every path.
func (s *DirectoryStrategy) Verify(ctx context.Context, username, password string) (*DirectoryProfile, error) {
	if missing := s.MissingSettings(); len(missing) > 0 {
		return nil, internal.ErrConfiguration.WithDetails(map[string][]string{"missing": missing})
	}
	// An empty password would be an unauthenticated bind, which most
	// directories accept.
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, internal.ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, 2*s.cfg.Timeout+time.Second)
	defer cancel()

	svc, err := s.dialer.Dial(ctx)
	if err != nil {
		s.logger.Error("directory dial failed", "url", s.cfg.URL, "error", err)
		return nil, internal.ErrDirectoryUnavailable.WithCause(err)
	}
	defer svc.Close()

	if err := svc.Bind(s.cfg.BindDN, s.cfg.BindPassword); err != nil {
		return nil, s.serviceBindError(err)
	}

	entry, err := s.search(svc, username)
	if err != nil {
		return nil, err
	}

	userConn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.logger.Error("directory dial for user bind failed", "url", s.cfg.URL, "error", err)
		return nil, internal.ErrDirectoryUnavailable.WithCause(err)
	}
	defer userConn.Close()

	if err := userConn.Bind(entry.DN, password); err != nil {
		if isUnavailable(err) {
			s.logger.Error("directory user bind failed", "dn", entry.DN, "error", err)
			return nil, internal.ErrDirectoryUnavailable.WithCause(err)
		}
		s.logger.Info("directory user bind rejected", "dn", entry.DN, "error", err)
		return nil, internal.ErrInvalidCredentials
	}

	return profileFromEntry(entry, username), nil
}

func (s *DirectoryStrategy) search(conn DirectoryConn, username string) (*ldap.Entry, error) {
	filter := strings.ReplaceAll(s.cfg.SearchFilter, usernamePlaceholder, ldap.EscapeFilter(username))
	req := ldap.NewSearchRequest(
		s.cfg.SearchBase,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		2, int(s.cfg.Timeout.Seconds()), false,
		filter,
		directoryAttributes,
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, internal.ErrUserNotFound
		}
		// Size limit exceeded means more than one match.
		if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			s.logger.Warn("directory search matched several entries", "filter", filter)
			return nil, internal.ErrInvalidCredentials
		}
		s.logger.Error("directory search failed", "base", s.cfg.SearchBase, "filter", filter, "error", err)
		return nil, internal.ErrDirectoryUnavailable.WithCause(err)
	}

	switch len(res.Entries) {
	case 0:
		return nil, internal.ErrUserNotFound
	case 1:
		return res.Entries[0], nil
	default:
		s.logger.Warn("directory search matched several entries", "filter", filter, "count", len(res.Entries))
		return nil, internal.ErrInvalidCredentials
	}
}

func (s *DirectoryStrategy) serviceBindError(err error) error {
	if isUnavailable(err) {
		s.logger.Error("directory service bind failed", "url", s.cfg.URL, "error", err)
		return internal.ErrDirectoryUnavailable.WithCause(err)
	}
	s.logger.Error("directory service account rejected", "bind_dn", s.cfg.BindDN, "error", err)
	return internal.ErrConfiguration.WithCause(err)
}

func isUnavailable(err error) bool {
	if ldap.IsErrorWithCode(err, ldap.ErrorNetwork) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultBusy) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultUnavailable) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultTimeLimitExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func profileFromEntry(e *ldap.Entry, username string) *DirectoryProfile {
	p := &DirectoryProfile{
		DN:          e.DN,
		Username:    e.GetAttributeValue("sAMAccountName"),
		DisplayName: e.GetAttributeValue("displayName"),
		Email:       e.GetAttributeValue("mail"),
		FirstName:   e.GetAttributeValue("givenName"),
		LastName:    e.GetAttributeValue("sn"),
		Groups:      e.GetAttributeValues("memberOf"),
	}
	if p.Username == "" {
		p.Username = username
	}
	if p.FirstName == "" && p.LastName == "" && p.DisplayName != "" {
		parts := strings.Fields(p.DisplayName)
		p.FirstName = parts[0]
		if len(parts) > 1 {
			p.LastName = strings.Join(parts[1:], " ")
		}
	}
	return p
}

// provision creates the local row on first login and refreshes profile and
// role afterwards. Status is left alone so an administrator's suspension
// sticks.
func (s *DirectoryStrategy) provision(ctx context.Context, p *DirectoryProfile) (*User, error) {
	role := s.roles.Map(p.Groups)
	id := s.cfg.UserIDPrefix + strings.ToLower(p.Username)

	row, err := s.repo.GetByID(ctx, id)
	if err != nil && !errors.Is(err, internal.ErrUserNotFound) {
		return nil, internal.NewInternalError("failed to load directory user", err)
	}

	if row == nil {
		row = &userdm.User{
			ID:         id,
			Email:      p.Email,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Role:       string(role),
			Status:     string(coreuser.StatusActive),
			AuthSource: string(coreuser.SourceLDAP),
		}
		if s.usernameFree(ctx, p.Username, id) {
			name := p.Username
			row.Username = &name
		}
		if err := s.repo.Create(ctx, row); err != nil {
			return nil, internal.NewInternalError("failed to provision directory user", err)
		}
		s.logger.Info("provisioned directory user", "user_id", id, "role", role)
		return FromModel(row), nil
	}

	changed := false
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&row.Email, p.Email},
		{&row.FirstName, p.FirstName},
		{&row.LastName, p.LastName},
	} {
		if f.src != "" && *f.dst != f.src {
			*f.dst = f.src
			changed = true
		}
	}
	if coreuser.NormalizeRole(row.Role) != role {
		s.logger.Info("directory role changed", "user_id", id, "from", row.Role, "to", role)
		row.Role = string(role)
		changed = true
	}
	if row.AuthSource != string(coreuser.SourceLDAP) || row.PasswordHash != nil {
		row.AuthSource = string(coreuser.SourceLDAP)
		row.PasswordHash = nil
		changed = true
	}

	if changed {
		if err := s.repo.Update(ctx, row); err != nil {
			return nil, internal.NewInternalError("failed to refresh directory user", err)
		}
	}
	return FromModel(row), nil
}

func (s *DirectoryStrategy) usernameFree(ctx context.Context, username, id string) bool {
	existing, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, internal.ErrUserNotFound) {
		return true
	}
	if err == nil && existing.ID != id {
		s.logger.Warn("directory username already used by another account", "username", username, "user_id", existing.ID)
	}
	return false
}

// Test dials and binds with the service account.
func (s *DirectoryStrategy) Test(ctx context.Context) DirectoryTestResult {
	res := DirectoryTestResult{Configuration: s.Configuration()}
	if missing := s.MissingSettings(); len(missing) > 0 {
		res.Error = "missing configuration: " + strings.Join(missing, ", ")
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout+time.Second)
	defer cancel()

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.logger.Error("directory test dial failed", "error", err)
		res.Error = "connection failed"
		return res
	}
	defer conn.Close()

	if err := conn.Bind(s.cfg.BindDN, s.cfg.BindPassword); err != nil {
		s.logger.Error("directory test bind failed", "error", err)
		res.Error = "service account bind failed"
		return res
	}
	res.Connected = true
	return res
}
