// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package snmp

import (
	"testing"

	"github.com/posteo/go-agentx/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/multiwan/internal/bus"
)

func TestTableRows(t *testing.T) {
	rows := tableRows([]bus.StatusEntry{
		{Ifname: "wan0", Ifindex: 2, Level: 4, Name: "full"},
		{Ifname: "wan1", Ifindex: 3, Level: 1, Name: "none"},
	})
	require.Len(t, rows, 6)

	assert.Equal(t, RootOID+".1.2", rows[0].oid)
	assert.Equal(t, pdu.VariableTypeInteger, rows[0].typ)
	assert.Equal(t, int32(2), rows[0].value)

	assert.Equal(t, RootOID+".2.2", rows[1].oid)
	assert.Equal(t, int32(4), rows[1].value)

	assert.Equal(t, RootOID+".3.2", rows[2].oid)
	assert.Equal(t, pdu.VariableTypeOctetString, rows[2].typ)
	assert.Equal(t, "full", rows[2].value)

	assert.Equal(t, RootOID+".1.3", rows[3].oid)
	assert.Equal(t, int32(1), rows[4].value)
	assert.Equal(t, "none", rows[5].value)
}

func TestTableRowsEmpty(t *testing.T) {
	assert.Empty(t, tableRows(nil))
}

func TestTableRowsSanitizesName(t *testing.T) {
	rows := tableRows([]bus.StatusEntry{
		{Ifname: "wan0", Ifindex: 2, Level: 4, Name: ""},
		{Ifname: "wan1", Ifindex: 3, Level: 99, Name: "bogus"},
	})
	require.Len(t, rows, 6)
	assert.Equal(t, "unknown", rows[2].value)
	assert.Equal(t, "unknown", rows[5].value)
}
