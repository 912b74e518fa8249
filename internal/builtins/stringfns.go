package builtins

import (
	"strconv"
	"strings"

	"phlox/internal/vm"
)

const defaultTrimChars = " \t\n\r\x00\x0B"

func installString(m *vm.VM) {
	reg := func(name string, min int, fn func(args []vm.Value) (vm.Value, error)) {
		m.RegisterBuiltin(name, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
			if err := needArgs(name, args, min); err != nil {
				return nil, err
			}
			return fn(args)
		})
	}

	reg("strlen", 1, func(args []vm.Value) (vm.Value, error) {
		return int64(len(argString(args, 0))), nil
	})

	reg("substr", 2, func(args []vm.Value) (vm.Value, error) {
		s := argString(args, 0)
		start := int(argInt(args, 1))
		if start < 0 {
			start += len(s)
			if start < 0 {
				start = 0
			}
		}
		if start >= len(s) {
			return "", nil
		}
		length := len(s) - start
		if len(args) > 2 && args[2] != nil {
			length = int(argInt(args, 2))
			if length < 0 {
				length = len(s) - start + length
			}
			if length < 0 {
				length = 0
			}
		}
		if start+length > len(s) {
			length = len(s) - start
		}
		return s[start : start+length], nil
	})

	reg("strpos", 2, func(args []vm.Value) (vm.Value, error) {
		offset := int(vm.ToInt(optArg(args, 2, int64(0))))
		s := argString(args, 0)
		if offset < 0 || offset > len(s) {
			return nil, vm.Throwf("ValueError",
				"strpos(): Argument #3 ($offset) must be contained in argument #1 ($haystack)")
		}
		idx := strings.Index(s[offset:], argString(args, 1))
		if idx < 0 {
			return false, nil
		}
		return int64(offset + idx), nil
	})

	reg("str_replace", 3, func(args []vm.Value) (vm.Value, error) {
		subject := argString(args, 2)
		search, searchMany := args[0].(*vm.Array)
		replace, replaceMany := args[1].(*vm.Array)
		switch {
		case searchMany && replaceMany:
			rvals := replace.List()
			for i, sv := range search.List() {
				r := ""
				if i < len(rvals) {
					r = vm.ToString(rvals[i])
				}
				subject = strings.ReplaceAll(subject, vm.ToString(sv), r)
			}
		case searchMany:
			r := argString(args, 1)
			for _, sv := range search.List() {
				subject = strings.ReplaceAll(subject, vm.ToString(sv), r)
			}
		default:
			subject = strings.ReplaceAll(subject, argString(args, 0), argString(args, 1))
		}
		return subject, nil
	})

	reg("explode", 2, func(args []vm.Value) (vm.Value, error) {
		sep := argString(args, 0)
		if sep == "" {
			return nil, vm.Throwf("ValueError", "explode(): Argument #1 ($separator) cannot be empty")
		}
		out := vm.NewArray()
		for _, part := range strings.Split(argString(args, 1), sep) {
			out.Append(part)
		}
		return out, nil
	})

	reg("implode", 1, func(args []vm.Value) (vm.Value, error) {
		// both implode($glue, $array) and implode($array)
		glue := ""
		var a *vm.Array
		if arr, ok := args[0].(*vm.Array); ok {
			a = arr
		} else {
			if err := needArgs("implode", args, 2); err != nil {
				return nil, err
			}
			glue = argString(args, 0)
			arr, err := argArray("implode", args, 1)
			if err != nil {
				return nil, err
			}
			a = arr
		}
		parts := make([]string, 0, a.Len())
		for _, v := range a.List() {
			parts = append(parts, vm.ToString(v))
		}
		return strings.Join(parts, glue), nil
	})

	reg("trim", 1, func(args []vm.Value) (vm.Value, error) {
		return strings.Trim(argString(args, 0), vm.ToString(optArg(args, 1, defaultTrimChars))), nil
	})
	reg("ltrim", 1, func(args []vm.Value) (vm.Value, error) {
		return strings.TrimLeft(argString(args, 0), vm.ToString(optArg(args, 1, defaultTrimChars))), nil
	})
	reg("rtrim", 1, func(args []vm.Value) (vm.Value, error) {
		return strings.TrimRight(argString(args, 0), vm.ToString(optArg(args, 1, defaultTrimChars))), nil
	})

	reg("strtolower", 1, func(args []vm.Value) (vm.Value, error) {
		return strings.ToLower(argString(args, 0)), nil
	})
	reg("strtoupper", 1, func(args []vm.Value) (vm.Value, error) {
		return strings.ToUpper(argString(args, 0)), nil
	})
	reg("ucfirst", 1, func(args []vm.Value) (vm.Value, error) {
		s := argString(args, 0)
		if s == "" {
			return s, nil
		}
		return strings.ToUpper(s[:1]) + s[1:], nil
	})
	reg("lcfirst", 1, func(args []vm.Value) (vm.Value, error) {
		s := argString(args, 0)
		if s == "" {
			return s, nil
		}
		return strings.ToLower(s[:1]) + s[1:], nil
	})
	reg("ucwords", 1, func(args []vm.Value) (vm.Value, error) {
		s := []byte(argString(args, 0))
		up := true
		for i, c := range s {
			if up && c >= 'a' && c <= 'z' {
				s[i] = c - 32
			}
			up = c == ' ' || c == '\t' || c == '\n'
		}
		return string(s), nil
	})

	reg("str_contains", 2, func(args []vm.Value) (vm.Value, error) {
		return strings.Contains(argString(args, 0), argString(args, 1)), nil
	})
	reg("str_starts_with", 2, func(args []vm.Value) (vm.Value, error) {
		return strings.HasPrefix(argString(args, 0), argString(args, 1)), nil
	})
	reg("str_ends_with", 2, func(args []vm.Value) (vm.Value, error) {
		return strings.HasSuffix(argString(args, 0), argString(args, 1)), nil
	})

	reg("str_repeat", 2, func(args []vm.Value) (vm.Value, error) {
		n := argInt(args, 1)
		if n < 0 {
			return nil, vm.Throwf("ValueError",
				"str_repeat(): Argument #2 ($times) must be greater than or equal to 0")
		}
		return strings.Repeat(argString(args, 0), int(n)), nil
	})

	reg("str_pad", 2, func(args []vm.Value) (vm.Value, error) {
		s := argString(args, 0)
		width := int(argInt(args, 1))
		pad := vm.ToString(optArg(args, 2, " "))
		side := vm.ToInt(optArg(args, 3, int64(1))) // 0 left, 1 right, 2 both
		if pad == "" || width <= len(s) {
			return s, nil
		}
		total := width - len(s)
		fill := func(n int) string {
			return strings.Repeat(pad, n/len(pad)+1)[:n]
		}
		switch side {
		case 0:
			return fill(total) + s, nil
		case 2:
			left := total / 2
			return fill(left) + s + fill(total-left), nil
		default:
			return s + fill(total), nil
		}
	})

	reg("strrev", 1, func(args []vm.Value) (vm.Value, error) {
		s := []byte(argString(args, 0))
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
		return string(s), nil
	})

	reg("str_split", 1, func(args []vm.Value) (vm.Value, error) {
		size := int(vm.ToInt(optArg(args, 1, int64(1))))
		if size < 1 {
			return nil, vm.Throwf("ValueError",
				"str_split(): Argument #2 ($length) must be greater than 0")
		}
		s := argString(args, 0)
		out := vm.NewArray()
		for i := 0; i < len(s); i += size {
			end := i + size
			if end > len(s) {
				end = len(s)
			}
			out.Append(s[i:end])
		}
		return out, nil
	})

	reg("chr", 1, func(args []vm.Value) (vm.Value, error) {
		return string(byte(argInt(args, 0) & 0xff)), nil
	})
	reg("ord", 1, func(args []vm.Value) (vm.Value, error) {
		s := argString(args, 0)
		if s == "" {
			return int64(0), nil
		}
		return int64(s[0]), nil
	})

	reg("number_format", 1, func(args []vm.Value) (vm.Value, error) {
		n := argFloat(args, 0)
		decimals := int(vm.ToInt(optArg(args, 1, int64(0))))
		decSep := vm.ToString(optArg(args, 2, "."))
		thouSep := vm.ToString(optArg(args, 3, ","))
		return numberFormat(n, decimals, decSep, thouSep), nil
	})
}

func numberFormat(n float64, decimals int, decSep, thouSep string) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatFloat(n, 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thouSep)
		}
		b.WriteRune(c)
	}
	if decimals > 0 {
		b.WriteString(decSep)
		b.WriteString(frac)
	}
	return b.String()
}
