package dripper

import (
	"github.com/tarancss/faucet/lib/util"
)

// Privileges tells which internal requesters are exempt from the quota and balance cap checks.
type Privileges interface {
	Privileged(sender string) bool
}

// AllowList is a fixed list of privileged requester ids.
type AllowList []string

func (a AllowList) Privileged(sender string) bool {
	return sender != "" && util.In(a, sender)
}
