package stores

import (
	"strings"

	"github.com/civicpulse/authcore/internal/otp"
)

const defaultPrefix = "ac"

type keyspace struct {
	prefix string
}

func newKeyspace(prefix string) keyspace {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return keyspace{prefix: prefix}
}

func (k keyspace) code(identity string, purpose otp.Purpose) string {
	return k.prefix + ":otp:" + string(purpose) + ":" + identity
}

// Account keys share one hash tag so the multi-key account scripts stay in a
// single cluster slot.
func (k keyspace) accountTag() string {
	return "{" + k.prefix + ":acct}"
}

func (k keyspace) account(id string) string {
	return k.accountTag() + ":id:" + id
}

func (k keyspace) identity(identity string) string {
	return k.accountTag() + ":ident:" + identity
}

func (k keyspace) unverified() string {
	return k.accountTag() + ":unverified"
}
