// Package logger builds configured slog loggers for the identity engine and
// provides attribute helpers for the identifiers that recur across its log
// lines: tenants, users, roles and entity versions.
//
// The factory wraps the chosen handler with a decorator that injects
// request-scoped attributes from context at log time, so engine code can log
// without threading identifiers through every call.
//
// # Usage
//
//	log := logger.New(
//		logger.WithFormat(logger.FormatJSON),
//		logger.WithLevel(slog.LevelInfo),
//	)
//
//	log.InfoContext(ctx, "role assigned",
//		logger.TenantID(tenantID),
//		logger.UserID(userID),
//		logger.RoleID(roleID),
//		logger.Version(newVersion),
//	)
package logger
