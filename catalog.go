// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"context"
	"fmt"

	errs "github.com/mycastle/adminrpc/internal/errors"
)

// The catalog is closed: exactly this many tools and resources, asserted by
// tests. Extending it is a code change, never a runtime registration.
const (
	catalogToolCount     = 15
	catalogResourceCount = 8
)

// DirectoryBackend is the collaborator behind the user administration tools.
// The control plane knows nothing about its implementation; it only forwards
// validated, authorized calls and reports results or failures.
type DirectoryBackend interface {
	CreateUser(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	UpdateUser(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	DeactivateUser(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	ResetPassword(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	BulkImportUsers(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	Roster(ctx context.Context, actor *Actor) (interface{}, error)
	Roles(ctx context.Context, actor *Actor) (interface{}, error)
}

// AttendanceLedger is the collaborator behind the attendance tools. Its
// tamper-evident hash chaining is opaque to this layer.
type AttendanceLedger interface {
	RecordAttendance(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	CorrectAttendance(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	ExportAttendance(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	Registers(ctx context.Context, actor *Actor) (interface{}, error)
	ComplianceStatus(ctx context.Context, actor *Actor) (interface{}, error)
}

// FinanceLedger is the collaborator behind bookings, invoicing and refunds.
type FinanceLedger interface {
	CreateBooking(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	IssueInvoice(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	RefundPayment(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	Invoices(ctx context.Context, actor *Actor) (interface{}, error)
	Outstanding(ctx context.Context, actor *Actor) (interface{}, error)
}

// AcademicPlanner is the collaborator behind scheduling and lesson planning.
type AcademicPlanner interface {
	ScheduleClass(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	AssignTeacher(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	ApproveLessonPlan(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	GenerateLessonPlan(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)
	Courses(ctx context.Context, actor *Actor) (interface{}, error)
	Timetable(ctx context.Context, actor *Actor) (interface{}, error)
}

// Backends groups the external collaborators consumed by the catalog. A nil
// backend leaves its tools registered but failing with a configuration error,
// so the catalog shape stays fixed regardless of wiring.
type Backends struct {
	Directory  DirectoryBackend
	Attendance AttendanceLedger
	Finance    FinanceLedger
	Academic   AcademicPlanner
}

// guardTool wraps a backend method, converting a nil backend into a typed
// configuration failure at call time.
func guardTool(configured bool, fn ToolHandler) ToolHandler {
	return func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
		if !configured {
			return nil, errs.ErrNotConfigured
		}
		return fn(ctx, args, actor)
	}
}

func guardResource(configured bool, fn ResourceHandler) ResourceHandler {
	return func(ctx context.Context, actor *Actor) (interface{}, error) {
		if !configured {
			return nil, errs.ErrNotConfigured
		}
		return fn(ctx, actor)
	}
}

// newMethodRegistry builds the static catalog: 15 tools and 8 resources,
// with their scopes, audit classification and input contracts.
func newMethodRegistry(b Backends) *methodRegistry {
	r := newEmptyRegistry()

	registerDirectoryCatalog(r, b.Directory)
	registerAttendanceCatalog(r, b.Attendance)
	registerFinanceCatalog(r, b.Finance)
	registerAcademicCatalog(r, b.Academic)

	if len(r.toolsOrder) != catalogToolCount {
		panic(fmt.Sprintf("method registry built with %d tools, want %d", len(r.toolsOrder), catalogToolCount))
	}
	if len(r.resourcesOrder) != catalogResourceCount {
		panic(fmt.Sprintf("method registry built with %d resources, want %d", len(r.resourcesOrder), catalogResourceCount))
	}
	return r
}

func registerDirectoryCatalog(r *methodRegistry, backend DirectoryBackend) {
	ok := backend != nil

	r.registerTool(
		NewTool("create_user",
			WithDescription("Create a user account with profile data and an initial role."),
			WithString("email", Description("Login email address.")),
			WithString("full_name", Description("Display name.")),
			WithString("role", Description("Initial role for the account.")),
			RequiredProperty("email", "full_name", "role"),
		),
		[]Scope{ScopeWriteUser, ScopeWritePII}, true, "user",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.CreateUser(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("update_user",
			WithDescription("Update mutable fields of an existing user account."),
			WithString("id", Description("User identifier.")),
			WithObject("fields", Description("Fields to update.")),
			RequiredProperty("id", "fields"),
		),
		[]Scope{ScopeWriteUser}, true, "user",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.UpdateUser(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("deactivate_user",
			WithDescription("Deactivate a user account without deleting its records."),
			WithString("id", Description("User identifier.")),
			RequiredProperty("id"),
		),
		[]Scope{ScopeWriteUser}, true, "user",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.DeactivateUser(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("reset_password",
			WithDescription("Issue a password reset for a user account."),
			WithString("id", Description("User identifier.")),
			RequiredProperty("id"),
		),
		[]Scope{ScopeWriteUser}, true, "user",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.ResetPassword(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("bulk_import_users",
			WithDescription("Import user accounts from a prepared dataset."),
			WithArray("records", Description("User records to import.")),
			WithBoolean("dry_run", Description("Validate without writing.")),
			RequiredProperty("records"),
		),
		[]Scope{ScopeWriteUser, ScopeWritePII}, true, "user",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.BulkImportUsers(ctx, args, actor)
		}),
	)

	r.registerResource(
		&Resource{
			URI:      ResourceScheme + "users/roster",
			Name:     "User Roster",
			MimeType: "application/json",
		},
		[]Scope{ScopeReadUser},
		guardResource(ok, func(ctx context.Context, actor *Actor) (interface{}, error) {
			return backend.Roster(ctx, actor)
		}),
	)

	r.registerResource(
		&Resource{
			URI:      ResourceScheme + "users/roles",
			Name:     "Role Assignments",
			MimeType: "application/json",
		},
		[]Scope{ScopeReadUser},
		guardResource(ok, func(ctx context.Context, actor *Actor) (interface{}, error) {
			return backend.Roles(ctx, actor)
		}),
	)
}

func registerAttendanceCatalog(r *methodRegistry, backend AttendanceLedger) {
	ok := backend != nil

	r.registerTool(
		NewTool("record_attendance",
			WithDescription("Record attendance marks for a class session."),
			WithString("register_id", Description("Register identifier.")),
			WithArray("marks", Description("Per-student attendance marks.")),
			RequiredProperty("register_id", "marks"),
		),
		[]Scope{ScopeWriteAttendance}, true, "attendance",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.RecordAttendance(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("correct_attendance",
			WithDescription("Correct a previously recorded attendance mark, preserving the audit chain."),
			WithString("register_id", Description("Register identifier.")),
			WithString("entry_id", Description("Entry to correct.")),
			WithString("status", Description("Corrected status."), Enum("present", "absent", "late", "excused")),
			RequiredProperty("register_id", "entry_id", "status"),
		),
		[]Scope{ScopeWriteAttendance}, true, "attendance",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.CorrectAttendance(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("export_attendance",
			WithDescription("Export attendance registers for a date range."),
			WithString("from", Description("Start date, ISO-8601.")),
			WithString("to", Description("End date, ISO-8601.")),
			RequiredProperty("from", "to"),
		),
		[]Scope{ScopeReadAttendance, ScopeReadPII}, false, "attendance",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.ExportAttendance(ctx, args, actor)
		}),
	)

	r.registerResource(
		&Resource{
			URI:      ResourceScheme + "attendance/registers",
			Name:     "Attendance Registers",
			MimeType: "application/json",
		},
		[]Scope{ScopeReadAttendance},
		guardResource(ok, func(ctx context.Context, actor *Actor) (interface{}, error) {
			return backend.Registers(ctx, actor)
		}),
	)

	r.registerResource(
		&Resource{
			URI:      ResourceScheme + "attendance/compliance",
			Name:     "Compliance Status",
			MimeType: "application/json",
		},
		[]Scope{ScopeReadAttendance},
		guardResource(ok, func(ctx context.Context, actor *Actor) (interface{}, error) {
			return backend.ComplianceStatus(ctx, actor)
		}),
	)
}

func registerFinanceCatalog(r *methodRegistry, backend FinanceLedger) {
	ok := backend != nil

	r.registerTool(
		NewTool("create_booking",
			WithDescription("Create a course booking for a student."),
			WithString("student_id", Description("Student identifier.")),
			WithString("course_id", Description("Course identifier.")),
			RequiredProperty("student_id", "course_id"),
		),
		[]Scope{ScopeWriteFinance}, true, "booking",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.CreateBooking(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("issue_invoice",
			WithDescription("Issue an invoice against a booking."),
			WithString("booking_id", Description("Booking identifier.")),
			WithNumber("amount", Description("Invoice amount.")),
			WithString("currency", Description("ISO-4217 currency code.")),
			RequiredProperty("booking_id", "amount", "currency"),
		),
		[]Scope{ScopeWriteFinance}, true, "invoice",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.IssueInvoice(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("refund_payment",
			WithDescription("Refund a settled payment in full or in part."),
			WithString("payment_id", Description("Payment identifier.")),
			WithNumber("amount", Description("Amount to refund.")),
			WithString("reason", Description("Refund reason.")),
			RequiredProperty("payment_id", "amount"),
		),
		[]Scope{ScopeWriteFinance}, true, "payment",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.RefundPayment(ctx, args, actor)
		}),
	)

	r.registerResource(
		&Resource{
			URI:      ResourceScheme + "finance/invoices",
			Name:     "Invoices",
			MimeType: "application/json",
		},
		[]Scope{ScopeReadFinance},
		guardResource(ok, func(ctx context.Context, actor *Actor) (interface{}, error) {
			return backend.Invoices(ctx, actor)
		}),
	)

	r.registerResource(
		&Resource{
			URI:      ResourceScheme + "finance/outstanding",
			Name:     "Outstanding Payments",
			MimeType: "application/json",
		},
		[]Scope{ScopeReadFinance},
		guardResource(ok, func(ctx context.Context, actor *Actor) (interface{}, error) {
			return backend.Outstanding(ctx, actor)
		}),
	)
}

func registerAcademicCatalog(r *methodRegistry, backend AcademicPlanner) {
	ok := backend != nil

	r.registerTool(
		NewTool("schedule_class",
			WithDescription("Schedule a class session for a course."),
			WithString("course_id", Description("Course identifier.")),
			WithString("starts_at", Description("Session start, ISO-8601.")),
			WithString("room", Description("Room identifier.")),
			RequiredProperty("course_id", "starts_at"),
		),
		[]Scope{ScopeWriteAcademic}, true, "class",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.ScheduleClass(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("assign_teacher",
			WithDescription("Assign a teacher to a scheduled class."),
			WithString("class_id", Description("Class identifier.")),
			WithString("teacher_id", Description("Teacher identifier.")),
			RequiredProperty("class_id", "teacher_id"),
		),
		[]Scope{ScopeWriteAcademic}, true, "class",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.AssignTeacher(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("approve_lesson_plan",
			WithDescription("Approve a submitted lesson plan."),
			WithString("plan_id", Description("Lesson plan identifier.")),
			WithString("comment", Description("Reviewer comment.")),
			RequiredProperty("plan_id"),
		),
		[]Scope{ScopeWriteAcademic}, true, "lesson_plan",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.ApproveLessonPlan(ctx, args, actor)
		}),
	)

	r.registerTool(
		NewTool("generate_lesson_plan",
			WithDescription("Generate a draft lesson plan from a course template."),
			WithString("course_id", Description("Course identifier.")),
			WithString("level", Description("Target level.")),
			RequiredProperty("course_id"),
		),
		[]Scope{ScopeReadAcademic}, false, "lesson_plan",
		guardTool(ok, func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error) {
			return backend.GenerateLessonPlan(ctx, args, actor)
		}),
	)

	r.registerResource(
		&Resource{
			URI:      ResourceScheme + "academic/courses",
			Name:     "Courses",
			MimeType: "application/json",
		},
		[]Scope{ScopeReadAcademic},
		guardResource(ok, func(ctx context.Context, actor *Actor) (interface{}, error) {
			return backend.Courses(ctx, actor)
		}),
	)

	r.registerResource(
		&Resource{
			URI:      ResourceScheme + "academic/timetable",
			Name:     "Timetable",
			MimeType: "application/json",
		},
		[]Scope{ScopeReadAcademic},
		guardResource(ok, func(ctx context.Context, actor *Actor) (interface{}, error) {
			return backend.Timetable(ctx, actor)
		}),
	)
}
