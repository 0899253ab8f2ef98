package auth

import (
	"context"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// DirectoryConn is the subset of an LDAP connection the strategy uses.
type DirectoryConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

type DirectoryDialer interface {
	Dial(ctx context.Context) (DirectoryConn, error)
}

// LDAPDialer opens real connections with go-ldap. ldaps:// URLs get TLS.
type LDAPDialer struct {
	URL     string
	Timeout time.Duration
}

func NewLDAPDialer(url string, timeout time.Duration) *LDAPDialer {
	return &LDAPDialer{URL: url, Timeout: timeout}
}

func (d *LDAPDialer) Dial(ctx context.Context) (DirectoryConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := ldap.DialURL(d.URL, ldap.DialWithDialer(&net.Dialer{Timeout: d.Timeout}))
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(d.Timeout)

	// Closing the connection aborts any in-flight operation when the
	// caller goes away.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	return &ldapConn{conn: conn, stop: stop}, nil
}

type ldapConn struct {
	conn *ldap.Conn
	stop func() bool
}

func (c *ldapConn) Bind(username, password string) error {
	return c.conn.Bind(username, password)
}

func (c *ldapConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return c.conn.Search(req)
}

func (c *ldapConn) Close() {
	c.stop()
	c.conn.Close()
}
