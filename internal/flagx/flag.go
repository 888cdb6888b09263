// Package flagx lets several components share os.Args without tripping over
// each other's flags: each one filters the arguments down to the names it
// owns before handing them to its own flag.FlagSet.
package flagx

import (
	"flag"
	"strings"
)

// Filter keeps only the allowed flags from args, together with their values.
// Both "-f value" and "-f=value" forms are recognised; a token starting with
// "-" is never taken as a value.
func Filter(args []string, allowed ...string) []string {
	keep := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		keep[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		if name, _, found := strings.Cut(arg, "="); found {
			if keep[name] {
				out = append(out, arg)
			}
			continue
		}
		if !keep[arg] {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// ConfigPath returns the value of -c / -config in args, or "" when absent.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(Filter(args, "-c", "-config", "--config"))

	return path
}
