// Package core implements the bulk import pipeline for master data.
//
// The package is independent of any UI or transport layer. It can be used by
// web handlers, CLI tools, or tests without modification.
//
// # Pipeline
//
// An import moves through four stages, all driven through a [Session]:
//
//  1. Target selection: one of the [Target] collections, fixed for the session.
//  2. File selection: the [Format] is resolved once from the file name by
//     [DetectFormat]. Unknown extensions are rejected up front.
//  3. Parsing: [Parse] turns a [SourceFile] into records or errors, never both.
//     Every record is stamped with created_at and a null deleted_at.
//  4. Upload: records are submitted one request at a time, in order, and the
//     sequence stops at the first failure.
//
// Only one parse or upload may run per session at a time. Overlapping calls
// fail with [ErrBusy] and leave the session untouched.
//
// # Targets
//
// Each target is described by a [TargetDefinition] in the registry: its
// endpoint path, display label, and advisory field rules used by [Validate].
// Validation never blocks an upload; issues are shown as warnings.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE004: File selection errors (size, type, missing)
//   - PARSE001-PARSE003: Parse errors (JSON, spreadsheet, encoding)
//   - UPL001-UPL005: Upload errors (preconditions, busy, timeout)
//   - API001-API003: Master-data API errors
//   - SES001-SES003: Session errors
//   - RATE001: Rate limiting
package core
