package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/go-ldap/ldap/v3"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// fakeDirectory serves binds and searches from memory and counts
// connections so tests can check that every one is closed.
type fakeDirectory struct {
	mu        sync.Mutex
	passwords map[string]string
	entries   []*ldap.Entry
	dialErr   error
	searchErr error
	bindErr   map[string]error

	opened   int
	closed   int
	searches []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		passwords: map[string]string{"CN=svc,DC=corp": "svc-secret"},
		bindErr:   map[string]error{},
	}
}

func (f *fakeDirectory) addUser(sam, dn, password string, groups ...string) {
	f.passwords[dn] = password
	f.entries = append(f.entries, ldap.NewEntry(dn, map[string][]string{
		"sAMAccountName": {sam},
		"displayName":    {"Test " + sam},
		"mail":           {sam + "@corp.example"},
		"givenName":      {"Test"},
		"sn":             {sam},
		"memberOf":       groups,
	}))
}

func (f *fakeDirectory) Dial(context.Context) (DirectoryConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	f.opened++
	return &fakeConn{dir: f}, nil
}

type fakeConn struct{ dir *fakeDirectory }

func (c *fakeConn) Bind(dn, password string) error {
	if err, ok := c.dir.bindErr[dn]; ok {
		return err
	}
	if want, ok := c.dir.passwords[dn]; ok && want == password {
		return nil
	}
	return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.dir.mu.Lock()
	c.dir.searches = append(c.dir.searches, req.Filter)
	c.dir.mu.Unlock()
	if c.dir.searchErr != nil {
		return nil, c.dir.searchErr
	}
	res := &ldap.SearchResult{}
	for _, e := range c.dir.entries {
		if strings.Contains(req.Filter, "="+e.GetAttributeValue("sAMAccountName")+")") {
			res.Entries = append(res.Entries, e)
		}
	}
	return res, nil
}

func (c *fakeConn) Close() {
	c.dir.mu.Lock()
	c.dir.closed++
	c.dir.mu.Unlock()
}

var _ = ginkgo.Describe("DirectoryStrategy", func() {
	var (
		ctx      context.Context
		dir      *fakeDirectory
		repo     *memoryRepository
		cfg      internal.DirectoryConfig
		strategy *DirectoryStrategy
	)

	build := func() {
		strategy = NewDirectoryStrategy(cfg, dir, repo, testLogger)
	}

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		dir = newFakeDirectory()
		repo = newMemoryRepository()
		cfg = internal.DirectoryConfig{
			Enabled:      true,
			URL:          "ldap://dc.corp:389",
			BindDN:       "CN=svc,DC=corp",
			BindPassword: "svc-secret",
			SearchBase:   "DC=corp",
			SearchFilter: "(sAMAccountName={{username}})",
			Timeout:      time.Second,
			RoleGroups:   internal.DefaultRoleGroups(),
		}
		dir.addUser("jdoe", "CN=John Doe,OU=Users,DC=corp", "pa55word",
			"CN=SecureTeam-Admins,OU=Groups,DC=corp")
		dir.addUser("asmith", "CN=Ann Smith,OU=Users,DC=corp", "s3cret")
		build()
	})

	ginkgo.AfterEach(func() {
		gomega.Expect(dir.closed).To(gomega.Equal(dir.opened), "every directory connection must be closed")
	})

	ginkgo.It("provisions an active directory user on first login", func() {
		u, err := strategy.Authenticate(ctx, "jdoe", "pa55word")

		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(u.ID).To(gomega.Equal("ad_jdoe"))
		gomega.Expect(u.Role).To(gomega.Equal(coreuser.RoleAdmin))
		gomega.Expect(u.Status).To(gomega.Equal(coreuser.StatusActive))
		gomega.Expect(u.AuthSource).To(gomega.Equal(coreuser.SourceLDAP))
		gomega.Expect(u.Email).To(gomega.Equal("jdoe@corp.example"))
		gomega.Expect(dir.opened).To(gomega.Equal(2))

		row, err := repo.GetByID(ctx, "ad_jdoe")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(row.PasswordHash).To(gomega.BeNil())
	})

	ginkgo.It("defaults to analyst when no group matches", func() {
		u, err := strategy.Authenticate(ctx, "asmith", "s3cret")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(u.Role).To(gomega.Equal(coreuser.RoleAnalyst))
	})

	ginkgo.It("refreshes role and profile on later logins", func() {
		_, err := strategy.Authenticate(ctx, "asmith", "s3cret")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		dir.entries[1] = ldap.NewEntry("CN=Ann Smith,OU=Users,DC=corp", map[string][]string{
			"sAMAccountName": {"asmith"},
			"mail":           {"ann.smith@corp.example"},
			"memberOf":       {"CN=RedTeam-Leads,OU=Groups,DC=corp"},
		})

		u, err := strategy.Authenticate(ctx, "asmith", "s3cret")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(u.Role).To(gomega.Equal(coreuser.RoleTeamLead))
		gomega.Expect(u.Email).To(gomega.Equal("ann.smith@corp.example"))
	})

	ginkgo.It("keeps an administrator's suspension", func() {
		_, err := strategy.Authenticate(ctx, "asmith", "s3cret")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		repo.setStatus("ad_asmith", coreuser.StatusSuspended)

		_, err = strategy.Authenticate(ctx, "asmith", "s3cret")
		expectAppError(err, internal.ErrAccountInactive)
	})

	ginkgo.It("fails with invalid credentials when the user bind is rejected", func() {
		_, err := strategy.Authenticate(ctx, "jdoe", "wrong")
		expectAppError(err, internal.ErrInvalidCredentials)
		gomega.Expect(repo.users).To(gomega.BeEmpty())
	})

	ginkgo.It("fails with user not found when the search is empty", func() {
		_, err := strategy.Authenticate(ctx, "ghost", "whatever")
		expectAppError(err, internal.ErrUserNotFound)
		gomega.Expect(dir.opened).To(gomega.Equal(1))
	})

	ginkgo.It("escapes the username in the search filter", func() {
		_, err := strategy.Authenticate(ctx, "*)(cn=*", "whatever")
		expectAppError(err, internal.ErrUserNotFound)
		gomega.Expect(dir.searches).To(gomega.ConsistOf(`(sAMAccountName=\2a\29\28cn=\2a)`))
	})

	ginkgo.It("rejects an empty password without touching the network", func() {
		_, err := strategy.Authenticate(ctx, "jdoe", "")
		expectAppError(err, internal.ErrInvalidCredentials)
		gomega.Expect(dir.opened).To(gomega.Equal(0))
	})

	ginkgo.DescribeTable("fails fast on missing configuration",
		func(mutate func(*internal.DirectoryConfig)) {
			mutate(&cfg)
			build()

			_, err := strategy.Authenticate(ctx, "jdoe", "pa55word")
			expectAppError(err, internal.ErrConfiguration)
			gomega.Expect(dir.opened).To(gomega.Equal(0))
		},
		ginkgo.Entry("bind dn", func(c *internal.DirectoryConfig) { c.BindDN = "" }),
		ginkgo.Entry("bind password", func(c *internal.DirectoryConfig) { c.BindPassword = "" }),
		ginkgo.Entry("search base", func(c *internal.DirectoryConfig) { c.SearchBase = "" }),
	)

	ginkgo.It("reports an unreachable directory as unavailable", func() {
		dir.dialErr = ldap.NewError(ldap.ErrorNetwork, errors.New("connection refused"))

		_, err := strategy.Authenticate(ctx, "jdoe", "pa55word")
		expectAppError(err, internal.ErrDirectoryUnavailable)
	})

	ginkgo.It("reports a rejected service account as a configuration error", func() {
		dir.passwords["CN=svc,DC=corp"] = "rotated"

		_, err := strategy.Authenticate(ctx, "jdoe", "pa55word")
		expectAppError(err, internal.ErrConfiguration)
		gomega.Expect(dir.opened).To(gomega.Equal(1))
	})

	ginkgo.It("reports a search timeout as unavailable and still closes the connection", func() {
		dir.searchErr = ldap.NewError(ldap.ErrorNetwork, errors.New("i/o timeout"))

		_, err := strategy.Authenticate(ctx, "jdoe", "pa55word")
		expectAppError(err, internal.ErrDirectoryUnavailable)
		gomega.Expect(dir.opened).To(gomega.Equal(1))
	})

	ginkgo.It("reports a user bind timeout as unavailable rather than bad credentials", func() {
		dir.bindErr["CN=John Doe,OU=Users,DC=corp"] = ldap.NewError(ldap.ErrorNetwork, errors.New("i/o timeout"))

		_, err := strategy.Authenticate(ctx, "jdoe", "pa55word")
		expectAppError(err, internal.ErrDirectoryUnavailable)
		gomega.Expect(dir.opened).To(gomega.Equal(2))
	})

	ginkgo.It("does not claim a username held by a local account", func() {
		repo.addLocal("local-1", "jdoe", "local-password", coreuser.RoleAnalyst, coreuser.StatusActive)

		u, err := strategy.Authenticate(ctx, "jdoe", "pa55word")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(u.ID).To(gomega.Equal("ad_jdoe"))

		row, _ := repo.GetByID(ctx, "ad_jdoe")
		gomega.Expect(row.Username).To(gomega.BeNil())
	})

	ginkgo.Describe("Test", func() {
		ginkgo.It("reports connectivity", func() {
			res := strategy.Test(ctx)
			gomega.Expect(res.Connected).To(gomega.BeTrue())
			gomega.Expect(res.Configuration).To(gomega.HaveKeyWithValue("bindDN", "configured"))
		})

		ginkgo.It("lists missing settings", func() {
			cfg.BindDN = ""
			build()

			res := strategy.Test(ctx)
			gomega.Expect(res.Connected).To(gomega.BeFalse())
			gomega.Expect(res.Configuration).To(gomega.HaveKeyWithValue("bindDN", "missing"))
			gomega.Expect(res.Error).To(gomega.ContainSubstring("bindDN"))
		})
	})

	ginkgo.It("surfaces unknown directory users as invalid credentials through the service", func() {
		service := NewService(repo, strategy, strategy, NewMemoryStore(time.Hour, testLogger), testHasher, testLogger)

		_, _, err := service.DirectoryLogin(ctx, LoginDTO{Username: "ghost", Password: "whatever"})
		expectAppError(err, internal.ErrInvalidCredentials)
	})
})

var _ = ginkgo.Describe("RoleMapper", func() {
	mapper := NewRoleMapper(internal.DefaultRoleGroups())

	ginkgo.DescribeTable("Map",
		func(groups []string, expected coreuser.Role) {
			gomega.Expect(mapper.Map(groups)).To(gomega.Equal(expected))
		},
		ginkgo.Entry("admin group by CN", []string{"CN=SecureTeam-Admins,OU=Groups,DC=corp"}, coreuser.RoleAdmin),
		ginkgo.Entry("unmatched group", []string{"CN=Random-Group"}, coreuser.RoleAnalyst),
		ginkgo.Entry("no groups", nil, coreuser.RoleAnalyst),
		ginkgo.Entry("malformed DN", []string{"not a dn ,,,="}, coreuser.RoleAnalyst),
		ginkgo.Entry("empty value", []string{""}, coreuser.RoleAnalyst),
		ginkgo.Entry("case-insensitive", []string{"cn=REDTEAM-ADMINS,dc=corp"}, coreuser.RoleAdmin),
		ginkgo.Entry("lead group", []string{"CN=Security-Leads,DC=corp"}, coreuser.RoleTeamLead),
		ginkgo.Entry("analyst group", []string{"CN=Penetration-Testers,DC=corp"}, coreuser.RoleAnalyst),
		ginkgo.Entry("admin wins over lead regardless of order",
			[]string{"CN=Security-Leads,DC=corp", "CN=Security-Admins,DC=corp"}, coreuser.RoleAdmin),
		ginkgo.Entry("lead wins over analyst",
			[]string{"CN=Security-Analysts,DC=corp", "CN=RedTeam-Leads,DC=corp"}, coreuser.RoleTeamLead),
		ginkgo.Entry("keyword only inside a longer CN does not match",
			[]string{"CN=Not-Security-Admins-Really,DC=corp"}, coreuser.RoleAnalyst),
		ginkgo.Entry("keyword in an OU does not match", []string{"CN=Staff,OU=Security-Admins,DC=corp"}, coreuser.RoleAnalyst),
	)

	ginkgo.It("matches a configured full DN", func() {
		m := NewRoleMapper(internal.RoleGroups{Lead: []string{"CN=Leads,OU=Groups,DC=corp"}})
		gomega.Expect(m.Map([]string{"cn=leads,ou=groups,dc=corp"})).To(gomega.Equal(coreuser.RoleTeamLead))
	})
})
