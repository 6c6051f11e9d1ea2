package catalog

import "github.com/opsweep/opsweep/pkg/models"

// Default returns the built-in capability set. Loading a different set is an
// external concern; the core only ever reads.
func Default() *Catalog {
	c, err := New(defaultCapabilities...)
	if err != nil {
		// The default set is compiled in; a duplicate id here is a
		// programming error.
		panic(err)
	}

	return c
}

var defaultCapabilities = []models.Capability{
	// diagnostics
	{
		ID:          "diag.mem.pressure",
		Title:       "Check memory pressure",
		Description: "Report current memory usage and pressure level",
		Group:       models.GroupDiagnostics,
		Risk:        models.RiskSafe,
		Privilege:   models.PrivilegeUser,
	},
	{
		ID:          "diag.disk.free",
		Title:       "Check free disk space",
		Description: "Report free and used disk space on the system volume",
		Group:       models.GroupDiagnostics,
		Risk:        models.RiskSafe,
		Privilege:   models.PrivilegeUser,
	},
	{
		ID:          "diag.cpu.top",
		Title:       "Top CPU consumers",
		Description: "List the processes using the most CPU right now",
		Group:       models.GroupDiagnostics,
		Risk:        models.RiskSafe,
		Privilege:   models.PrivilegeUser,
	},
	{
		ID:          "diag.net.status",
		Title:       "Network status",
		Description: "Report active network interfaces and connectivity",
		Group:       models.GroupDiagnostics,
		Risk:        models.RiskSafe,
		Privilege:   models.PrivilegeUser,
	},
	{
		ID:          "diag.uptime",
		Title:       "System uptime",
		Description: "Report how long the system has been running since last boot",
		Group:       models.GroupDiagnostics,
		Risk:        models.RiskSafe,
		Privilege:   models.PrivilegeUser,
	},

	// memory
	{
		ID:            "mem.purge",
		Title:         "Purge inactive memory",
		Description:   "Force the system to release inactive memory pages",
		Group:         models.GroupMemory,
		Risk:          models.RiskModerate,
		Privilege:     models.PrivilegeElevated,
		RollbackNotes: "Memory refills naturally as applications are used; no action needed",
	},

	// disk
	{
		ID:          "disk.large.scan",
		Title:       "Find large files",
		Description: "Scan the home directory for unusually large files",
		Group:       models.GroupDisk,
		Risk:        models.RiskSafe,
		Privilege:   models.PrivilegeUser,
	},
	{
		ID:            "disk.trash.empty",
		Title:         "Empty the trash",
		Description:   "Permanently delete all items in the trash",
		Group:         models.GroupDisk,
		Risk:          models.RiskDestructive,
		Privilege:     models.PrivilegeUser,
		RollbackNotes: "Emptied trash cannot be recovered; review trash contents first",
	},
	{
		ID:            "disk.downloads.clean",
		Title:         "Clean old downloads",
		Description:   "Delete files in the downloads folder older than 90 days",
		Group:         models.GroupDisk,
		Risk:          models.RiskDestructive,
		Privilege:     models.PrivilegeFullDiskAccess,
		RollbackNotes: "Deleted downloads are moved to the trash and can be restored until it is emptied",
	},

	// cache
	{
		ID:            "cache.user.clear",
		Title:         "Clear user caches",
		Description:   "Delete per-user application cache folders",
		Group:         models.GroupCache,
		Risk:          models.RiskModerate,
		Privilege:     models.PrivilegeUser,
		RollbackNotes: "Applications rebuild their caches on next launch",
	},
	{
		ID:            "deep.cache.user",
		Title:         "Deep-clean user caches",
		Description:   "Aggressively delete all user-level cache and derived data folders",
		Group:         models.GroupCache,
		Risk:          models.RiskDestructive,
		Privilege:     models.PrivilegeFullDiskAccess,
		RollbackNotes: "Caches are rebuilt over time; first launches will be slower",
	},
	{
		ID:            "cache.browser.clear",
		Title:         "Clear browser caches",
		Description:   "Delete browser cache folders for installed browsers",
		Group:         models.GroupCache,
		Risk:          models.RiskModerate,
		Privilege:     models.PrivilegeUser,
		RollbackNotes: "Browsers rebuild caches while browsing; sessions are unaffected",
	},
	{
		ID:            "tmp.clean",
		Title:         "Clean temporary files",
		Description:   "Delete stale files from system temporary directories",
		Group:         models.GroupCache,
		Risk:          models.RiskModerate,
		Privilege:     models.PrivilegeUser,
		RollbackNotes: "Temporary files are recreated on demand",
	},

	// browser
	{
		ID:          "browser.tabs.list",
		Title:       "List browser tabs",
		Description: "Enumerate open browser tabs with their memory footprint",
		Group:       models.GroupBrowser,
		Risk:        models.RiskSafe,
		Privilege:   models.PrivilegeAutomation,
	},
	{
		ID:            "browser.tabs.close",
		Title:         "Close heavy browser tabs",
		Description:   "Close browser tabs above a memory threshold",
		Group:         models.GroupBrowser,
		Risk:          models.RiskModerate,
		Privilege:     models.PrivilegeAutomation,
		RollbackNotes: "Closed tabs can be reopened from browser history",
	},

	// process
	{
		ID:          "proc.list",
		Title:       "List processes",
		Description: "List running processes with CPU and memory usage",
		Group:       models.GroupProcess,
		Risk:        models.RiskSafe,
		Privilege:   models.PrivilegeUser,
	},
	{
		ID:            "proc.kill",
		Title:         "Terminate a process",
		Description:   "Terminate a running process by name",
		Group:         models.GroupProcess,
		Risk:          models.RiskDestructive,
		Privilege:     models.PrivilegeUser,
		RollbackNotes: "Relaunch the application; unsaved work in it may be lost",
	},
}
