package main

// lintMetrics renders the counters accumulated by every check this server
// has run.
func (l *linter) lintMetrics() (string, error) {
	return l.metrics.Text()
}
