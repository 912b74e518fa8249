package builtins

import (
	"strings"

	"github.com/dlclark/regexp2"

	"phlox/internal/vm"
)

func installRegex(m *vm.VM) {
	reg := func(name string, min int, fn func(args []vm.Value) (vm.Value, error)) {
		m.RegisterBuiltin(name, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
			if err := needArgs(name, args, min); err != nil {
				return nil, err
			}
			return fn(args)
		})
	}

	// preg_match returns the match group array, or false when the subject
	// does not match (the by-reference out-parameter of the original API
	// does not exist here).
	reg("preg_match", 2, func(args []vm.Value) (vm.Value, error) {
		re, err := parsePattern("preg_match", argString(args, 0))
		if err != nil {
			return nil, err
		}
		match, err := re.FindStringMatch(argString(args, 1))
		if err != nil {
			return nil, vm.Throwf("Error", "preg_match(): %s", err)
		}
		if match == nil {
			return false, nil
		}
		return groupArray(match), nil
	})

	reg("preg_match_all", 2, func(args []vm.Value) (vm.Value, error) {
		re, err := parsePattern("preg_match_all", argString(args, 0))
		if err != nil {
			return nil, err
		}
		out := vm.NewArray()
		match, err := re.FindStringMatch(argString(args, 1))
		for match != nil && err == nil {
			out.Append(groupArray(match))
			match, err = re.FindNextMatch(match)
		}
		if err != nil {
			return nil, vm.Throwf("Error", "preg_match_all(): %s", err)
		}
		return out, nil
	})

	reg("preg_replace", 3, func(args []vm.Value) (vm.Value, error) {
		re, err := parsePattern("preg_replace", argString(args, 0))
		if err != nil {
			return nil, err
		}
		limit := int(vm.ToInt(optArg(args, 3, int64(-1))))
		result, err := re.Replace(argString(args, 2), argString(args, 1), 0, limit)
		if err != nil {
			return nil, vm.Throwf("Error", "preg_replace(): %s", err)
		}
		return result, nil
	})

	reg("preg_split", 2, func(args []vm.Value) (vm.Value, error) {
		re, err := parsePattern("preg_split", argString(args, 0))
		if err != nil {
			return nil, err
		}
		subject := argString(args, 1)
		out := vm.NewArray()
		last := 0
		match, merr := re.FindStringMatch(subject)
		for match != nil && merr == nil {
			if match.Length == 0 {
				// zero-width matches would loop forever
				break
			}
			out.Append(subject[last:match.Index])
			last = match.Index + match.Length
			match, merr = re.FindNextMatch(match)
		}
		if merr != nil {
			return nil, vm.Throwf("Error", "preg_split(): %s", merr)
		}
		out.Append(subject[last:])
		return out, nil
	})

	reg("preg_quote", 1, func(args []vm.Value) (vm.Value, error) {
		var b strings.Builder
		for _, c := range argString(args, 0) {
			if strings.ContainsRune(`.\+*?[^]$(){}=!<>|:-#/`, c) {
				b.WriteByte('\\')
			}
			b.WriteRune(c)
		}
		return b.String(), nil
	})
}

// parsePattern splits a delimited pattern like "/foo/i" into the body and
// modifier set and compiles it.
func parsePattern(name, pattern string) (*regexp2.Regexp, error) {
	if len(pattern) < 2 {
		return nil, vm.Throwf("Error", "%s(): Empty regular expression", name)
	}
	delim := pattern[0]
	end := strings.LastIndexByte(pattern[1:], delim)
	if end < 0 {
		return nil, vm.Throwf("Error", "%s(): No ending delimiter '%c' found", name, delim)
	}
	end++ // offset for the skipped first byte
	body := pattern[1:end]
	opts := regexp2.None
	for _, f := range pattern[end+1:] {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'x':
			opts |= regexp2.IgnorePatternWhitespace
		case 'u':
			opts |= regexp2.Unicode
		default:
			return nil, vm.Throwf("Error", "%s(): Unknown modifier '%c'", name, f)
		}
	}
	re, err := regexp2.Compile(body, opts)
	if err != nil {
		return nil, vm.Throwf("Error", "%s(): Compilation failed: %s", name, err)
	}
	return re, nil
}

func groupArray(match *regexp2.Match) *vm.Array {
	out := vm.NewArray()
	for _, g := range match.Groups() {
		out.Append(g.String())
	}
	return out
}
