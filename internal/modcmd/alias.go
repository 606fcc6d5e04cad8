package modcmd

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandAlias expands an alias token list against argv per §4.5.4:
//   $N     -> argv[N]
//   $N-    -> argv[N..end], spliced in as separate elements
//   $N-M   -> argv[N..M] clamped to available, spliced in as separate elements
//   $$     -> literal "$"
// Indices are 0-based against argv (argv[0] is the command word itself, per
// the dispatch pipeline's convention of swapping in the channel-extraction
// step before alias expansion runs). Out-of-range references expand to
// empty; a token beginning with "$" matching none of the above is an error.
func ExpandAlias(tokens []string, argv []string) ([]string, error) {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "$") {
			out = append(out, tok)
			continue
		}
		expanded, err := expandToken(tok, argv)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// expandToken returns the slice of argv elements a single "$..." token
// expands to: a single empty-string element for an out-of-range $N (so
// positional arguments still line up), zero-or-more for a range.
func expandToken(tok string, argv []string) ([]string, error) {
	if tok == "$$" {
		return []string{"$"}, nil
	}
	rest := tok[1:]

	if n, isIndex, err := parseIndex(rest); isIndex {
		if err != nil {
			return nil, err
		}
		return []string{argAt(argv, n)}, nil
	}

	if dash := strings.IndexByte(rest, '-'); dash >= 0 {
		lowStr, highStr := rest[:dash], rest[dash+1:]
		low, err := strconv.Atoi(lowStr)
		if err != nil {
			return nil, fmt.Errorf("modcmd: invalid alias token %q", tok)
		}
		if highStr == "" {
			return rangeSlice(argv, low, len(argv)-1), nil
		}
		high, err := strconv.Atoi(highStr)
		if err != nil {
			return nil, fmt.Errorf("modcmd: invalid alias token %q", tok)
		}
		return rangeSlice(argv, low, high), nil
	}

	return nil, fmt.Errorf("modcmd: invalid alias token %q", tok)
}

// parseIndex reports isIndex=true when rest is a bare decimal integer (the
// "$N" form, no dash); err is non-nil only if it looked numeric but failed
// to parse (shouldn't happen given the character check, kept for clarity).
func parseIndex(rest string) (n int, isIndex bool, err error) {
	if rest == "" || strings.Contains(rest, "-") {
		return 0, false, nil
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false, nil
		}
	}
	n, err = strconv.Atoi(rest)
	if err != nil {
		return 0, true, fmt.Errorf("modcmd: invalid alias token \"$%s\"", rest)
	}
	return n, true, nil
}

func argAt(argv []string, n int) string {
	if n < 0 || n >= len(argv) {
		return ""
	}
	return argv[n]
}

func rangeSlice(argv []string, low, high int) []string {
	if low < 0 {
		low = 0
	}
	if high >= len(argv) {
		high = len(argv) - 1
	}
	if low > high || low >= len(argv) {
		return nil
	}
	out := make([]string, high-low+1)
	copy(out, argv[low:high+1])
	return out
}
