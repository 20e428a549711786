// Package audit provides audit logging for security, compliance, and
// forensics: authentication events, authorization checks, data mutations,
// and admin actions, each with request context and before/after values
// where relevant.
//
// # Event Types
//
// Authentication: login, logout, password_change, token_create/revoke
// Authorization: permission_check, access_denied
// Data: package_create/update/delete, release_create/update/delete
// Access: package_read, release_read, archive_download
//
// # Usage Example
//
// Log authentication:
//
//	logger.LogAuthentication(ctx, audit.EventTypeAuthLogin, &user.ID, user.Username,
//		audit.EventStatusSuccess, "login succeeded")
//
// Log data mutation with before/after:
//
//	logger.LogDataMutation(ctx, audit.EventTypeDataPackageUpdate, &user.ID,
//		audit.ResourceTypePackage, pkg.FullName,
//		&audit.ChangeDetails{Before: before, After: after}, "package updated")
//
// Search audit logs (through a Store or a DBLogger):
//
//	start, end := time.Now().Add(-24*time.Hour), time.Now()
//	failure := audit.EventStatusFailure
//	results, err := store.Search(ctx, audit.SearchFilter{
//		StartTime:  &start,
//		EndTime:    &end,
//		UserID:     &userID,
//		EventTypes: []audit.EventType{audit.EventTypeAuthLogin},
//		Status:     &failure,
//	})
//
// # Retention Policy
//
// Default: 90 days. DBStore.Cleanup deletes older rows; it does not archive
// or compress them, whatever the policy's archive fields say.
// Export: JSON, CSV, NDJSON formats for external analysis.
//
// # Related Packages
//
//   - pkg/auth: token issuance and validation
//   - pkg/middleware: request-scoped auth context
//   - pkg/registryapi: the handlers that emit these events
package audit
