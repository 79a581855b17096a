// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAuditSinkEmit(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapAuditSink(zap.New(core))

	record := AuditRecord{
		TenantID:      "school-1",
		ActorID:       "actor-1",
		Action:        "create_user",
		ResourceType:  "user",
		ResourceID:    "u-9",
		Changes:       map[string]interface{}{"email": "a@b.c"},
		CorrelationID: "corr-1",
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, sink.Emit(context.Background(), record))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "[AUDIT]", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "create_user", fields["action"])
	assert.Equal(t, "actor-1", fields["actor_id"])
	assert.Equal(t, "school-1", fields["tenant_id"])
	assert.Equal(t, "corr-1", fields["correlation_id"])

	raw, ok := fields["record"].(string)
	require.True(t, ok)
	var decoded AuditRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, record.ResourceID, decoded.ResourceID)
	assert.Equal(t, record.Changes["email"], decoded.Changes["email"])
}

func TestZapAuditSinkNilLoggerFallback(t *testing.T) {
	sink := NewZapAuditSink(nil)
	assert.NoError(t, sink.Emit(context.Background(), AuditRecord{
		ActorID: "a", Action: "update_user", ResourceType: "user",
		Timestamp: time.Now().UTC(),
	}))
}
