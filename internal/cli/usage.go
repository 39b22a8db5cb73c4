package cli

const usage = `Usage:
  bundlegraph resolve [--base PATH] [--config PATH] [--format table|json] [--exclude NAME]... [--log-level LEVEL] [--log-format text|json] <entry>...
  bundlegraph registry [--base PATH] [--config PATH] [--format table|json] [--log-level LEVEL] [--log-format text|json]
  bundlegraph help

Commands:
  resolve                    Resolve the require() graph of the entry files
  registry                   List the package registry entry files

Options:
  --base PATH                Base path for entries and lookups (default: .)
  --config PATH              Config file (default: .bundlegraph.yml, .bundlegraph.yaml, bundlegraph.json or bundlegraph.toml)
  --format table|json        Output format (default: table)
  --exclude NAME             Module name to leave out of the graph (repeatable)
  --log-level LEVEL          debug, info, warn or error (default: info)
  --log-format text|json     Log format on stderr (default: text)
  -h, --help                 Show this help text

Exit codes:
  0 success, 1 runtime error, 2 usage error, 3 unresolved module
`

func Usage() string {
	return usage
}
