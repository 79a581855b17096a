// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AuditRecord captures one mutating operation attempt. Records report the
// attempt, not the outcome: a record is emitted once the call is authorized,
// before the backend result is known.
type AuditRecord struct {
	TenantID      string                 `json:"tenant_id,omitempty"`
	ActorID       string                 `json:"actor_id"`
	Action        string                 `json:"action"`
	ResourceType  string                 `json:"resource_type"`
	ResourceID    string                 `json:"resource_id,omitempty"`
	Changes       map[string]interface{} `json:"changes,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// AuditSink receives audit records. Implementations must be safe for
// concurrent use; delivery failures are the sink's problem to report, the
// request path never blocks or fails on them.
type AuditSink interface {
	Emit(ctx context.Context, record AuditRecord) error
}

// ZapAuditSink writes audit records as structured log entries.
type ZapAuditSink struct {
	logger *zap.Logger
}

// NewZapAuditSink creates a ZapAuditSink. A nil logger falls back to a
// production zap configuration.
func NewZapAuditSink(logger *zap.Logger) *ZapAuditSink {
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger, _ = zap.NewDevelopment()
		}
	}
	return &ZapAuditSink{logger: logger}
}

// Emit writes one audit record at info level. The full record travels as a
// single structured field alongside flat fields for quick filtering.
func (s *ZapAuditSink) Emit(_ context.Context, record AuditRecord) error {
	if s.logger == nil {
		return fmt.Errorf("zap logger not initialized")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	s.logger.Info("[AUDIT]",
		zap.ByteString("record", data),
		zap.String("action", record.Action),
		zap.String("actor_id", record.ActorID),
		zap.String("tenant_id", record.TenantID),
		zap.String("resource_type", record.ResourceType),
		zap.String("correlation_id", record.CorrelationID),
	)
	return nil
}
