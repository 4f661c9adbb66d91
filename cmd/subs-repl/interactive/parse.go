package interactive

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/liris-tech/subs-manager/pkg/subs"
)

// splitFlags separates positional words from --flag words.
// Flags take the forms --name and --name=value.
func splitFlags(words []string) ([]string, map[string]string, error) {
	var pos []string
	flags := make(map[string]string)

	for _, w := range words {
		if !strings.HasPrefix(w, "--") {
			pos = append(pos, w)
			continue
		}

		body := strings.TrimPrefix(w, "--")
		if body == "" {
			return nil, nil, fmt.Errorf("empty flag %q", w)
		}

		name, value, _ := strings.Cut(body, "=")
		switch name {
		case "client", "permanent", "delay":
			flags[name] = value
		default:
			return nil, nil, fmt.Errorf("unknown flag --%s", name)
		}
	}
	return pos, flags, nil
}

// parseOptions builds subscription options from command flags.
// Returns nil when neither --permanent nor --delay was given, so a
// plain register carries no options at all.
func parseOptions(flags map[string]string) (*subs.Options, error) {
	_, permanent := flags["permanent"]
	delayStr, hasDelay := flags["delay"]

	if !permanent && !hasDelay {
		return nil, nil
	}

	opts := &subs.Options{Permanent: permanent}
	if hasDelay {
		d, err := time.ParseDuration(delayStr)
		if err != nil {
			return nil, fmt.Errorf("invalid delay %q: %w", delayStr, err)
		}
		opts.UnsubDelay = d
	}
	return opts, nil
}

// parseArgs converts argument words to typed values: integers, floats
// and booleans are recognized, everything else stays a string.
func parseArgs(words []string) []any {
	args := make([]any, len(words))
	for i, w := range words {
		args[i] = parseArg(w)
	}
	return args
}

func parseArg(w string) any {
	if v, err := strconv.ParseInt(w, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(w, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(w); err == nil {
		return v
	}
	return w
}
