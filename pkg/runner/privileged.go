package runner

// NewPrivilegedRunner returns a runner whose commands run under sudo in
// non-interactive mode. The agent's sudoers entry must allow the wrapped
// commands; a missing entry surfaces as a non-zero exit, not a hang.
func NewPrivilegedRunner(opts ...Option) *ExecRunner {
	base := darwinCommands()
	wrapped := make(map[string][]string, len(base))

	for id, argv := range base {
		wrapped[id] = append([]string{"sudo", "-n"}, argv...)
	}

	opts = append([]Option{WithCommands(wrapped)}, opts...)

	return NewExecRunner(opts...)
}
