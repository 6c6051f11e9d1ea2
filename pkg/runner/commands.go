package runner

// darwinCommands maps every catalog capability to its macOS argv template.
// {placeholder} slots are filled from step arguments.
func darwinCommands() map[string][]string {
	return map[string][]string{
		"diag.mem.pressure": {"memory_pressure"},
		"diag.disk.free":    {"df", "-h", "/"},
		"diag.cpu.top":      {"top", "-l", "1", "-n", "10", "-o", "cpu"},
		"diag.net.status":   {"ifconfig", "-a"},
		"diag.uptime":       {"uptime"},

		"mem.purge": {"purge"},

		"disk.large.scan":      {"sh", "-c", "du -xh -d 2 ${HOME} 2>/dev/null | sort -rh | head -n 25"},
		"disk.trash.empty":     {"osascript", "-e", "tell application \"Finder\" to empty trash"},
		"disk.downloads.clean": {"sh", "-c", "find ${HOME}/Downloads -mtime +{days} -maxdepth 1 -type f -delete"},

		"cache.user.clear": {"sh", "-c", "find ${HOME}/Library/Caches -mindepth 2 -maxdepth 2 -mtime +7 -delete 2>/dev/null; true"},
		"deep.cache.user":  {"sh", "-c", "rm -rf ${HOME}/Library/Caches/*"},
		"cache.browser.clear": {
			"sh", "-c",
			"rm -rf ${HOME}/Library/Caches/com.apple.Safari ${HOME}/Library/Caches/Google/Chrome",
		},

		"tmp.clean": {"sh", "-c", "find ${TMPDIR:-/tmp} -mindepth 1 -mtime +3 -delete 2>/dev/null; true"},

		"browser.tabs.list": {
			"osascript", "-e",
			"tell application \"Safari\" to get URL of every tab of every window",
		},
		"browser.tabs.close": {
			"osascript", "-e",
			"tell application \"Safari\" to close (every tab of every window whose URL contains \"{pattern}\")",
		},

		"proc.list": {"ps", "aux", "-r"},
		"proc.kill": {"pkill", "-x", "{name}"},
	}
}
