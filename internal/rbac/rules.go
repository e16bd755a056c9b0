package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"candidate": {
		"attempt:start",
		"attempt:view-own",
		"answer:save",
		"attempt:submit",
		"application:create",
		"application:update-own",
		"application:submit-own",
		"application:view-own",
		"application:start-exam",
	},
	"registrar": {
		"application:admit",
		"application:view-all",
		"attempt:view-all",
	},
	"admin": {
		"*", // everything
	},
}
