// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package probe

import (
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// pingOnce sends a single unprivileged echo request to addr and reports
// whether a reply arrived within timeout.
func pingOnce(addr, ifname string, timeout time.Duration) bool {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)
	if ifname != "" {
		pinger.InterfaceName = ifname
	}

	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
