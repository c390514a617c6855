package connector

import (
	"net"
	"net/url"
	"strconv"
)

// DSNBuilder assembles a postgres:// connection string. Validation of the
// underlying parameters is Config.Validate's job; the builder only renders.
type DSNBuilder struct {
	scheme   string
	username string
	password string
	host     string
	port     int
	database string
	params   map[string]string
}

// NewDSNBuilder creates a new DSN builder.
func NewDSNBuilder(scheme string) *DSNBuilder {
	return &DSNBuilder{
		scheme: scheme,
		params: make(map[string]string),
	}
}

// Auth sets username and password.
func (b *DSNBuilder) Auth(username, password string) *DSNBuilder {
	b.username = username
	b.password = password
	return b
}

// Host sets the host and port.
func (b *DSNBuilder) Host(host string, port int) *DSNBuilder {
	b.host = host
	b.port = port
	return b
}

// Database sets the database name.
func (b *DSNBuilder) Database(name string) *DSNBuilder {
	b.database = name
	return b
}

// Param adds a single parameter. Empty values are skipped.
func (b *DSNBuilder) Param(key, value string) *DSNBuilder {
	if value != "" {
		b.params[key] = value
	}
	return b
}

// Params adds multiple parameters.
func (b *DSNBuilder) Params(params map[string]string) *DSNBuilder {
	for k, v := range params {
		if v != "" {
			b.params[k] = v
		}
	}
	return b
}

// Build renders the DSN. Credentials and the database name are escaped per
// their URI component, so values with spaces or separators survive a parse
// round trip. Parameters are emitted in sorted key order, keeping the
// output deterministic.
func (b *DSNBuilder) Build() string {
	u := url.URL{
		Scheme: b.scheme,
		Host:   b.host,
	}

	if b.port > 0 {
		u.Host = net.JoinHostPort(b.host, strconv.Itoa(b.port))
	}

	if b.username != "" {
		if b.password != "" {
			u.User = url.UserPassword(b.username, b.password)
		} else {
			u.User = url.User(b.username)
		}
	}

	if b.database != "" {
		u.Path = "/" + b.database
	}

	if len(b.params) > 0 {
		q := make(url.Values, len(b.params))
		for k, v := range b.params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}
