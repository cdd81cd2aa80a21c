// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package snmp mirrors the dispatcher's effective connectivity table
// into an AgentX subagent: one row per monitored interface, indexed by
// ifindex, with the numeric level and its string form.
package snmp

import (
	"context"
	"fmt"
	"time"

	"github.com/posteo/go-agentx"
	"github.com/posteo/go-agentx/pdu"
	"github.com/posteo/go-agentx/value"

	"grimm.is/multiwan/internal/bus"
	"grimm.is/multiwan/internal/errors"
	"grimm.is/multiwan/internal/level"
	"grimm.is/multiwan/internal/logging"
)

const (
	// RootOID is the registration subtree.
	RootOID = "1.3.6.1.4.1.99999.1.1"
	// DefaultMasterAddr is the master agent's AgentX TCP endpoint.
	DefaultMasterAddr = "localhost:705"
	// DefaultRefresh is how often the table is rebuilt.
	DefaultRefresh = 10 * time.Second
)

// Source supplies the effective table; in production the dispatcher's
// bus client.
type Source interface {
	GetStatus() ([]bus.StatusEntry, error)
}

// row is one variable binding in the exported subtree.
type row struct {
	oid   string
	typ   pdu.VariableType
	value interface{}
}

// tableRows flattens status entries into the three-column table:
// 1.<ifindex> ifindex, 2.<ifindex> numeric level, 3.<ifindex> name.
func tableRows(entries []bus.StatusEntry) []row {
	var rows []row
	for _, e := range entries {
		name := e.Name
		if name == "" || !level.Level(e.Level).Valid() {
			name = level.Unknown.String()
		}
		rows = append(rows,
			row{fmt.Sprintf("%s.1.%d", RootOID, e.Ifindex), pdu.VariableTypeInteger, int32(e.Ifindex)},
			row{fmt.Sprintf("%s.2.%d", RootOID, e.Ifindex), pdu.VariableTypeInteger, int32(e.Level)},
			row{fmt.Sprintf("%s.3.%d", RootOID, e.Ifindex), pdu.VariableTypeOctetString, name},
		)
	}
	return rows
}

// Subagent keeps the AgentX session registered and the table fresh.
type Subagent struct {
	logger  *logging.Logger
	source  Source
	addr    string
	refresh time.Duration
}

// New creates a subagent reading from source.
func New(logger *logging.Logger, source Source, addr string, refresh time.Duration) *Subagent {
	if addr == "" {
		addr = DefaultMasterAddr
	}
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Subagent{logger: logger, source: source, addr: addr, refresh: refresh}
}

// Run connects to the master agent, registers the subtree and refreshes
// the table until ctx is cancelled.
func (s *Subagent) Run(ctx context.Context) error {
	client, err := agentx.Dial("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "agentx master %s not reachable", s.addr)
	}
	defer client.Close()
	client.Timeout = 1 * time.Minute
	client.ReconnectInterval = 1 * time.Second

	session, err := client.Session()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "agentx session failed")
	}
	defer session.Close()

	s.update(session)

	if err := session.Register(127, value.MustParseOID(RootOID)); err != nil {
		return errors.Wrapf(err, errors.KindUnavailable, "failed to register %s", RootOID)
	}
	s.logger.Info("agentx subtree registered", "oid", RootOID, "master", s.addr)

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = session.Unregister(127, value.MustParseOID(RootOID))
			return ctx.Err()
		case <-ticker.C:
			s.update(session)
		}
	}
}

func (s *Subagent) update(session *agentx.Session) {
	entries, err := s.source.GetStatus()
	if err != nil {
		// Dispatcher down: keep serving the last table rather than
		// flapping rows in and out.
		s.logger.Warn("status source unavailable", "error", err)
		return
	}

	handler := &agentx.ListHandler{}
	for _, r := range tableRows(entries) {
		item := handler.Add(r.oid)
		item.Type = r.typ
		item.Value = r.value
	}
	session.Handler = handler
}
