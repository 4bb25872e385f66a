package storage

import (
	"path"
	"strings"
)

// AgentDir derives the canonical storage path for an identity.
// "daniel@example.com" becomes "example.com/daniel". The input is assumed
// to be email-shaped; validating that is the caller's responsibility.
func AgentDir(email string) string {
	local, domain, _ := strings.Cut(email, "@")
	return path.Join(domain, local)
}
