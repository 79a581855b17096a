// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

// Package natsaudit publishes audit records to NATS subjects, fanning each
// record out to a per-action subject and a global firehose subject.
package natsaudit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/mycastle/adminrpc"
)

const (
	// DefaultSubjectPrefix prefixes per-action subjects:
	// <prefix>.<resource_type>.<action>.
	DefaultSubjectPrefix = "adminrpc.audit"
	// DefaultGlobalSubject receives every record regardless of action.
	DefaultGlobalSubject = "adminrpc.audit.all"
)

// Opts configures Sink. Nil or zero values use defaults.
type Opts struct {
	// SubjectPrefix overrides the per-action subject prefix.
	SubjectPrefix string
	// GlobalSubject overrides the firehose subject. Set to "-" to disable
	// the global publish entirely.
	GlobalSubject string
	// Logger receives delivery diagnostics.
	Logger adminrpc.Logger
}

// Sink publishes audit records to NATS. It satisfies adminrpc.AuditSink.
type Sink struct {
	nc            *nats.Conn
	subjectPrefix string
	globalSubject string
	logger        adminrpc.Logger
}

// New creates a Sink over an established connection. Pass nil for opts to use
// defaults.
func New(nc *nats.Conn, opts *Opts) *Sink {
	s := &Sink{
		nc:            nc,
		subjectPrefix: DefaultSubjectPrefix,
		globalSubject: DefaultGlobalSubject,
		logger:        adminrpc.GetDefaultLogger(),
	}
	if opts != nil {
		if opts.SubjectPrefix != "" {
			s.subjectPrefix = opts.SubjectPrefix
		}
		if opts.GlobalSubject != "" {
			s.globalSubject = opts.GlobalSubject
		}
		if opts.Logger != nil {
			s.logger = opts.Logger
		}
	}
	return s
}

// Emit publishes one record to its action subject and the global subject.
func (s *Sink) Emit(_ context.Context, record adminrpc.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("natsaudit: failed to encode record: %w", err)
	}

	subject := s.actionSubject(record)
	if err := s.nc.Publish(subject, data); err != nil {
		s.logger.Errorf("natsaudit: failed to publish to %s: %v", subject, err)
		return err
	}

	if s.globalSubject != "-" {
		if err := s.nc.Publish(s.globalSubject, data); err != nil {
			s.logger.Errorf("natsaudit: failed to publish to %s: %v", s.globalSubject, err)
			return err
		}
	}

	s.logger.Debugf("natsaudit: published %s record for actor %s", record.Action, record.ActorID)
	return nil
}

func (s *Sink) actionSubject(record adminrpc.AuditRecord) string {
	resourceType := record.ResourceType
	if resourceType == "" {
		resourceType = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", s.subjectPrefix, resourceType, record.Action)
}
