package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// Nil errors yield an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the tenant identifier under the key "tenant_id".
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// UserID records the user identifier under the key "user_id".
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RoleID records the role identifier under the key "role_id".
func RoleID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("role_id", id)
}

// PermissionID records the permission identifier under the key "permission_id".
func PermissionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("permission_id", id)
}

// Version records an entity version under the key "version".
func Version(v int64) slog.Attr {
	return slog.Int64("version", v)
}
