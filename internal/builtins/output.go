package builtins

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"phlox/internal/vm"
)

func installOutput(m *vm.VM) {
	m.RegisterBuiltin("var_dump", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		var b strings.Builder
		for _, a := range args {
			dumpValue(&b, a, 0)
		}
		io.WriteString(machine.Stdout, b.String())
		return nil, nil
	})

	m.RegisterBuiltin("print_r", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("print_r", args, 1); err != nil {
			return nil, err
		}
		var b strings.Builder
		printR(&b, args[0], 0)
		if vm.ToBool(optArg(args, 1, false)) {
			return b.String(), nil
		}
		io.WriteString(machine.Stdout, b.String())
		return true, nil
	})

	m.RegisterBuiltin("printf", func(machine *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("printf", args, 1); err != nil {
			return nil, err
		}
		s, err := formatString("printf", argString(args, 0), args[1:])
		if err != nil {
			return nil, err
		}
		io.WriteString(machine.Stdout, s)
		return int64(len(s)), nil
	})

	m.RegisterBuiltin("sprintf", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if err := needArgs("sprintf", args, 1); err != nil {
			return nil, err
		}
		return formatString("sprintf", argString(args, 0), args[1:])
	})
}

func dumpValue(b *strings.Builder, v vm.Value, depth int) {
	pad := strings.Repeat("  ", depth)
	switch t := v.(type) {
	case nil:
		fmt.Fprintf(b, "%sNULL\n", pad)
	case bool:
		fmt.Fprintf(b, "%sbool(%t)\n", pad, t)
	case int64:
		fmt.Fprintf(b, "%sint(%d)\n", pad, t)
	case float64:
		fmt.Fprintf(b, "%sfloat(%s)\n", pad, vm.FormatFloat(t))
	case string:
		fmt.Fprintf(b, "%sstring(%d) %q\n", pad, len(t), t)
	case *vm.Array:
		fmt.Fprintf(b, "%sarray(%d) {\n", pad, t.Len())
		for _, k := range t.Keys() {
			if k.IsInt {
				fmt.Fprintf(b, "%s  [%d]=>\n", pad, k.Int)
			} else {
				fmt.Fprintf(b, "%s  [%q]=>\n", pad, k.Str)
			}
			val, _ := t.GetKey(k)
			dumpValue(b, val, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", pad)
	case *vm.Object:
		fmt.Fprintf(b, "%sobject(%s) (%d) {\n", pad, t.Class, t.Props.Len())
		for _, k := range t.Props.Keys() {
			fmt.Fprintf(b, "%s  [%q]=>\n", pad, vm.ToString(k.Display()))
			val, _ := t.Props.GetKey(k)
			dumpValue(b, val, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", pad)
	case *vm.EnumCase:
		fmt.Fprintf(b, "%senum(%s::%s)\n", pad, t.Enum, t.Case)
	case *vm.Closure:
		fmt.Fprintf(b, "%sobject(Closure) {\n%s}\n", pad, pad)
	case *vm.Generator:
		fmt.Fprintf(b, "%sobject(Generator) {\n%s}\n", pad, pad)
	default:
		fmt.Fprintf(b, "%s%s\n", pad, vm.ToString(v))
	}
}

func printR(b *strings.Builder, v vm.Value, depth int) {
	switch t := v.(type) {
	case *vm.Array:
		printRTable(b, "Array", t, depth)
	case *vm.Object:
		printRTable(b, t.Class+" Object", t.Props, depth)
	case *vm.EnumCase:
		fmt.Fprintf(b, "%s::%s", t.Enum, t.Case)
	default:
		b.WriteString(vm.ToString(v))
	}
}

func printRTable(b *strings.Builder, label string, a *vm.Array, depth int) {
	pad := strings.Repeat("    ", depth)
	fmt.Fprintf(b, "%s\n%s(\n", label, pad)
	for _, k := range a.Keys() {
		val, _ := a.GetKey(k)
		fmt.Fprintf(b, "%s    [%s] => ", pad, vm.ToString(k.Display()))
		printR(b, val, depth+1)
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "%s)\n", pad)
}

// formatString implements the printf-family format mini-language:
// %[flags][width][.precision]specifier with the b c d e E f F g G o s u
// x X specifiers.
func formatString(name, format string, args []vm.Value) (string, error) {
	var out strings.Builder
	argi := 0
	nextArg := func() (vm.Value, error) {
		if argi >= len(args) {
			return nil, vm.Throwf("ArgumentCountError",
				"%s(): too few arguments for format", name)
		}
		v := args[argi]
		argi++
		return v, nil
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return "", vm.Throwf("ValueError", "%s(): trailing %% in format", name)
		}
		if format[i] == '%' {
			out.WriteByte('%')
			continue
		}

		// flags
		var flags strings.Builder
		padChar := byte(0)
		for i < len(format) {
			switch format[i] {
			case '-', '+', ' ', '0':
				flags.WriteByte(format[i])
				i++
				continue
			case '\'':
				if i+1 < len(format) {
					padChar = format[i+1]
					i += 2
					continue
				}
			}
			break
		}
		// width
		start := i
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		width := format[start:i]
		// precision
		prec := ""
		if i < len(format) && format[i] == '.' {
			i++
			pstart := i
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			prec = "." + format[pstart:i]
		}
		if i >= len(format) {
			return "", vm.Throwf("ValueError", "%s(): missing format specifier", name)
		}

		arg, err := nextArg()
		if err != nil {
			return "", err
		}
		spec := format[i]
		var piece string
		switch spec {
		case 'd':
			piece = fmt.Sprintf("%"+flags.String()+width+"d", vm.ToInt(arg))
		case 'u':
			piece = fmt.Sprintf("%"+flags.String()+width+"d", uint64(vm.ToInt(arg)))
		case 'f', 'F':
			if prec == "" {
				prec = ".6"
			}
			piece = fmt.Sprintf("%"+flags.String()+width+prec+"f", vm.ToFloat(arg))
		case 'e', 'E', 'g', 'G':
			piece = fmt.Sprintf("%"+flags.String()+width+prec+string(spec), vm.ToFloat(arg))
		case 's':
			piece = fmt.Sprintf("%"+flags.String()+width+prec+"s", vm.ToString(arg))
		case 'x', 'X', 'o':
			piece = fmt.Sprintf("%"+flags.String()+width+string(spec), vm.ToInt(arg))
		case 'b':
			piece = padLeft(strconv.FormatInt(vm.ToInt(arg), 2), flags.String(), width)
		case 'c':
			piece = string(rune(vm.ToInt(arg)))
		default:
			return "", vm.Throwf("ValueError",
				"%s(): unknown format specifier \"%c\"", name, spec)
		}
		if padChar != 0 && width != "" {
			if w, _ := strconv.Atoi(width); len(piece) < w {
				piece = strings.Repeat(string(padChar), w-len(piece)) + strings.TrimLeft(piece, " ")
			}
		}
		out.WriteString(piece)
	}
	return out.String(), nil
}

func padLeft(s, flags, width string) string {
	w, _ := strconv.Atoi(width)
	for len(s) < w {
		if strings.Contains(flags, "-") {
			s += " "
		} else if strings.Contains(flags, "0") {
			s = "0" + s
		} else {
			s = " " + s
		}
	}
	return s
}
