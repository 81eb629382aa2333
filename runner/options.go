package runner

import "time"

// Option configures a Runner at construction time.
type Option func(*runnerConfig)

type runnerConfig struct {
	agentBin       string
	workDir        string
	model          string
	maxBudgetUSD   float64
	unprivileged   bool
	builtinTools   []string
	toolServers    []string
	itemTimeout    time.Duration
	cancelGrace    time.Duration
	stopGrace      time.Duration
	maxStdoutLine  int
	stderrCapLimit int
}

func defaultConfig() runnerConfig {
	return runnerConfig{
		agentBin:       "claude",
		itemTimeout:    300 * time.Second,
		cancelGrace:    2 * time.Second,
		stopGrace:      5 * time.Second,
		maxStdoutLine:  100 * 1024 * 1024,
		stderrCapLimit: 2000,
		builtinTools:   []string{"Read", "Edit", "Write", "Bash", "Grep", "Glob"},
	}
}

// WithAgentBinary overrides the executable launched for each child
// (default "claude").
func WithAgentBinary(path string) Option {
	return func(c *runnerConfig) { c.agentBin = path }
}

// WithWorkDir sets the child's working directory.
func WithWorkDir(dir string) Option {
	return func(c *runnerConfig) { c.workDir = dir }
}

// WithModel passes --model to the child. Only takes effect on the next
// spawned child; a running turn is unaffected.
func WithModel(model string) Option {
	return func(c *runnerConfig) { c.model = model }
}

// WithMaxBudgetUSD passes --max-budget-usd to the child.
func WithMaxBudgetUSD(usd float64) Option {
	return func(c *runnerConfig) { c.maxBudgetUSD = usd }
}

// WithUnprivileged sets --dangerously-skip-permissions instead of an
// explicit allowed-tool list.
func WithUnprivileged() Option {
	return func(c *runnerConfig) { c.unprivileged = true }
}

// WithToolServers names registered sidecar tool-server names, each wrapped
// as srv__<name> and added to the allowed-tool set when privileged.
func WithToolServers(names []string) Option {
	return func(c *runnerConfig) { c.toolServers = names }
}

// WithItemTimeout overrides the turn iterator's per-item dead-man's-switch
// timeout (default 300s).
func WithItemTimeout(d time.Duration) Option {
	return func(c *runnerConfig) { c.itemTimeout = d }
}
